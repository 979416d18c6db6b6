package job

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input validation errors.
var (
	ErrMissingURL  = errors.New("job: URL is required")
	ErrInvalidURL  = errors.New("job: invalid URL")
	ErrInvalidName = errors.New("job: invalid name")
)

// ClippedDir is the directory, relative to the working directory, that the
// clip tool writes its shapefiles to.
const ClippedDir = "clipped"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxNameLen = 128

// Job is the immutable context of one pipeline run.
type Job struct {
	id      string
	url     string
	bounds  Bounds
	name    string
	workDir string
}

// New validates the run input and returns a Job rooted at workRoot/name.
// It does not touch the filesystem.
func New(rawURL string, bounds Bounds, name, workRoot string) (*Job, error) {
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if workRoot == "" {
		return nil, errors.New("job: work root is required")
	}

	root, err := filepath.Abs(workRoot)
	if err != nil {
		return nil, fmt.Errorf("job: resolve work root: %w", err)
	}

	return &Job{
		id:      uuid.NewString(),
		url:     rawURL,
		bounds:  bounds,
		name:    name,
		workDir: filepath.Join(root, name),
	}, nil
}

// ValidateName reports whether name is usable as a file and directory name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q may only contain letters, digits, '.', '_' and '-'", ErrInvalidName, name)
	}
	// The tile tree is unpacked to workDir/name, next to the clipped layers.
	if strings.EqualFold(name, ClippedDir) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// ID returns the run identifier.
func (j *Job) ID() string { return j.id }

// URL returns the source bundle URL.
func (j *Job) URL() string { return j.url }

// Bounds returns the clip bounding box.
func (j *Job) Bounds() Bounds { return j.bounds }

// Name returns the map name.
func (j *Job) Name() string { return j.name }

// WorkDir returns the absolute working directory of the run.
func (j *Job) WorkDir() string { return j.workDir }

// ClippedPath returns the path of a clipped layer file with the given extension.
func (j *Job) ClippedPath(layer, ext string) string {
	return filepath.Join(j.workDir, ClippedDir, layer+ext)
}

// TilesPath returns the path of the tile database.
func (j *Job) TilesPath() string {
	return filepath.Join(j.workDir, j.name+MBTilesExt)
}

// TileTreeDir returns the directory the tile database is exploded into.
func (j *Job) TileTreeDir() string {
	return filepath.Join(j.workDir, j.name)
}

// ArchiveName returns the archive file name, without directory.
func (j *Job) ArchiveName() string {
	return j.name + ArchiveExt
}

// ArchivePath returns the path of the archive inside the working directory.
func (j *Job) ArchivePath() string {
	return filepath.Join(j.workDir, j.ArchiveName())
}

// Reset deletes any working directory left over from a previous run with the
// same name and creates an empty one.
func (j *Job) Reset() error {
	if err := os.RemoveAll(j.workDir); err != nil {
		return fmt.Errorf("job: remove stale working directory: %w", err)
	}
	if err := os.MkdirAll(j.workDir, 0755); err != nil {
		return fmt.Errorf("job: create working directory: %w", err)
	}
	return nil
}
