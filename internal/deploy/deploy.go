package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/mapmaker/internal/finalize"
	"github.com/ligustah/mapmaker/internal/job"
	"github.com/ligustah/mapmaker/internal/progress"
)

// ErrNotDeployed is returned by Lookup when no record exists for a name.
var ErrNotDeployed = errors.New("deploy: map not deployed")

// Record describes a deployed map.
type Record struct {
	Name       string     `json:"name"`
	Archive    string     `json:"archive"`
	MinZoom    int        `json:"min_zoom"`
	MaxZoom    int        `json:"max_zoom"`
	Bounds     job.Bounds `json:"bounds"`
	Size       int64      `json:"size"`
	Checksum   string     `json:"checksum"`
	RunID      string     `json:"run_id"`
	DeployedAt time.Time  `json:"deployed_at"`
}

// BlobUploader uploads deployments to a gocloud bucket.
type BlobUploader struct {
	bucket *blob.Bucket
	prefix string
	logger progress.Logger
	owned  bool
}

// Open opens bucketURL and returns an uploader that owns the bucket.
func Open(ctx context.Context, bucketURL, prefix string, logger progress.Logger) (*BlobUploader, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("deploy: open bucket: %w", err)
	}
	u := New(bucket, prefix, logger)
	u.owned = true
	return u, nil
}

// New wraps an already open bucket. Close does not close it.
func New(bucket *blob.Bucket, prefix string, logger progress.Logger) *BlobUploader {
	if logger == nil {
		logger = progress.Nop()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BlobUploader{
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Close releases the bucket if it was opened by Open.
func (u *BlobUploader) Close() error {
	if !u.owned {
		return nil
	}
	return u.bucket.Close()
}

// ArchiveKey returns the object key of the archive for name.
func (u *BlobUploader) ArchiveKey(name string) string {
	return u.prefix + name + job.ArchiveExt
}

// RecordKey returns the object key of the deployment record for name.
func (u *BlobUploader) RecordKey(name string) string {
	return u.prefix + name + ".json"
}

// Upload stores the archive and then its deployment record. An existing
// deployment of the same name is replaced.
func (u *BlobUploader) Upload(ctx context.Context, d finalize.Deployment) error {
	if prev, err := u.Lookup(ctx, d.Name); err == nil {
		u.logger.Infof("Replacing deployment of %s from run %s", d.Name, prev.RunID)
	} else if !errors.Is(err, ErrNotDeployed) {
		return err
	}

	size, checksum, err := u.uploadArchive(ctx, d)
	if err != nil {
		return err
	}

	rec := Record{
		Name:       d.Name,
		Archive:    u.ArchiveKey(d.Name),
		MinZoom:    d.MinZoom,
		MaxZoom:    d.MaxZoom,
		Bounds:     d.Bounds,
		Size:       size,
		Checksum:   checksum,
		RunID:      d.JobID,
		DeployedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return fmt.Errorf("deploy: marshal record: %w", err)
	}
	if err := u.bucket.WriteAll(ctx, u.RecordKey(d.Name), data, &blob.WriterOptions{
		ContentType: "application/json",
	}); err != nil {
		return fmt.Errorf("deploy: write record: %w", err)
	}

	u.logger.Infof("Deployed %s (%s)", rec.Archive, progress.FormatBytes(size))
	return nil
}

func (u *BlobUploader) uploadArchive(ctx context.Context, d finalize.Deployment) (int64, string, error) {
	f, err := os.Open(d.ArchivePath)
	if err != nil {
		return 0, "", fmt.Errorf("deploy: open archive: %w", err)
	}
	defer f.Close()

	// Cancelling the writer context aborts the upload instead of committing it.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := u.bucket.NewWriter(wctx, u.ArchiveKey(d.Name), &blob.WriterOptions{
		ContentType: "application/zip",
		Metadata:    map[string]string{"run_id": d.JobID},
	})
	if err != nil {
		return 0, "", fmt.Errorf("deploy: create writer: %w", err)
	}

	hash := sha256.New()
	written, err := io.Copy(w, io.TeeReader(f, hash))
	if err != nil {
		cancel()
		w.Close()
		return 0, "", fmt.Errorf("deploy: write archive: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, "", fmt.Errorf("deploy: close writer: %w", err)
	}

	return written, hex.EncodeToString(hash.Sum(nil)), nil
}

// Lookup reads the deployment record for name.
func (u *BlobUploader) Lookup(ctx context.Context, name string) (*Record, error) {
	data, err := u.bucket.ReadAll(ctx, u.RecordKey(name))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotDeployed, name)
		}
		return nil, fmt.Errorf("deploy: read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("deploy: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Remove deletes the deployment of name. Missing objects are ignored.
func (u *BlobUploader) Remove(ctx context.Context, name string) error {
	for _, key := range []string{u.RecordKey(name), u.ArchiveKey(name)} {
		if err := u.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("deploy: delete %s: %w", key, err)
		}
	}
	return nil
}

var _ finalize.Uploader = (*BlobUploader)(nil)
