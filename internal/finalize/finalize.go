// Package finalize delivers a finished archive and tears down the working
// directory.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ligustah/mapmaker/internal/job"
	"github.com/ligustah/mapmaker/internal/progress"
)

// ErrArchiveMissing is returned when the archive is not where packaging left it.
var ErrArchiveMissing = errors.New("finalize: archive does not exist")

// Deployment is passed to the Uploader once a map has been delivered.
type Deployment struct {
	JobID       string
	Name        string
	MinZoom     int
	MaxZoom     int
	Bounds      job.Bounds
	ArchivePath string
}

// Uploader publishes a delivered map somewhere else. It is optional.
type Uploader interface {
	Upload(ctx context.Context, d Deployment) error
}

// Finalizer moves archives to Destination and notifies Uploader, if set.
type Finalizer struct {
	Destination string
	Uploader    Uploader
	Logger      progress.Logger
}

// New creates a Finalizer. uploader may be nil.
func New(destination string, uploader Uploader, logger progress.Logger) *Finalizer {
	if logger == nil {
		logger = progress.Nop()
	}
	return &Finalizer{
		Destination: destination,
		Uploader:    uploader,
		Logger:      logger,
	}
}

// Relocate moves archivePath into the destination directory and returns the
// new path. An existing file of the same name is replaced.
func (f *Finalizer) Relocate(archivePath string) (string, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrArchiveMissing, archivePath)
		}
		return "", fmt.Errorf("finalize: stat archive: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrArchiveMissing, archivePath)
	}

	if err := os.MkdirAll(f.Destination, 0755); err != nil {
		return "", fmt.Errorf("finalize: create destination: %w", err)
	}

	dest := filepath.Join(f.Destination, filepath.Base(archivePath))
	if err := moveFile(archivePath, dest); err != nil {
		return "", fmt.Errorf("finalize: move archive: %w", err)
	}

	f.Logger.Infof("Saved %s (%s)", dest, progress.FormatBytes(info.Size()))
	return dest, nil
}

// Cleanup removes the working directory and everything in it.
func (f *Finalizer) Cleanup(workDir string) error {
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("finalize: remove working directory: %w", err)
	}
	return nil
}

// Notify hands the delivered map to the Uploader. Without one it does nothing.
func (f *Finalizer) Notify(ctx context.Context, d Deployment) error {
	if f.Uploader == nil {
		return nil
	}
	f.Logger.Infof("Uploading %s", d.Name)
	if err := f.Uploader.Upload(ctx, d); err != nil {
		return fmt.Errorf("finalize: upload: %w", err)
	}
	return nil
}

// DeploymentFor describes the delivered archive of j.
func DeploymentFor(j *job.Job, archivePath string) Deployment {
	return Deployment{
		JobID:       j.ID(),
		Name:        j.Name(),
		MinZoom:     job.MinZoom,
		MaxZoom:     job.MaxZoom,
		Bounds:      j.Bounds(),
		ArchivePath: archivePath,
	}
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
