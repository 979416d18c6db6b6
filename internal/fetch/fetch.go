package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	mmhttp "github.com/ligustah/mapmaker/internal/http"
	"github.com/ligustah/mapmaker/internal/progress"
)

// ErrUnsafePath is returned when an archive entry would be written outside
// the destination directory.
var ErrUnsafePath = errors.New("fetch: archive entry escapes destination")

// ErrEmptyBundle is returned when the downloaded archive has no files.
var ErrEmptyBundle = errors.New("fetch: bundle contains no files")

// Options configures Fetch.
type Options struct {
	// HTTPOptions configures the HTTP client.
	HTTPOptions mmhttp.Options

	// Logger receives status lines. Optional.
	Logger progress.Logger

	// Progress enables periodic transfer output.
	Progress bool

	// Output is where progress is written. Default: os.Stderr
	Output io.Writer
}

// Bundle describes a downloaded and extracted source bundle.
type Bundle struct {
	// Archive is the path of the downloaded file.
	Archive string

	// Dir is the directory the archive was extracted into.
	Dir string

	// Files lists extracted regular files, relative to Dir.
	Files []string

	// Size is the number of bytes downloaded.
	Size int64
}

// Fetch downloads rawURL into dir and extracts it there.
func Fetch(ctx context.Context, rawURL, dir string, opts Options) (*Bundle, error) {
	if opts.HTTPOptions.RetryAttempts == 0 && opts.HTTPOptions.RetryBackoff == 0 {
		opts.HTTPOptions = mmhttp.DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = progress.Nop()
	}

	name, err := archiveName(rawURL)
	if err != nil {
		return nil, err
	}
	archive := filepath.Join(dir, name)

	client := mmhttp.NewClient(opts.HTTPOptions)

	// Size is only used for progress output; servers that reject HEAD are fine.
	var total int64
	if info, err := client.Head(ctx, rawURL); err == nil {
		total = info.Size
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	opts.Logger.Infof("Downloading %s", rawURL)
	size, err := download(ctx, client, rawURL, archive, total, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Infof("Downloaded %s", progress.FormatBytes(size))

	files, err := Extract(archive, dir)
	if err != nil {
		return nil, err
	}
	opts.Logger.Infof("Extracted %d files from %s", len(files), name)

	return &Bundle{
		Archive: archive,
		Dir:     dir,
		Files:   files,
		Size:    size,
	}, nil
}

func download(ctx context.Context, client *mmhttp.Client, rawURL, dest string, total int64, opts Options) (int64, error) {
	body, err := client.Get(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("fetch: download %s: %w", rawURL, err)
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("fetch: create %s: %w", dest, err)
	}
	defer f.Close()

	var w io.Writer = f
	if opts.Progress {
		reporter := progress.NewReporter(progress.Options{
			Label:          "Downloading",
			TotalBytes:     total,
			Output:         opts.Output,
			UpdateInterval: 5 * time.Second,
		})
		reporter.Start()
		defer reporter.Stop()
		w = io.MultiWriter(f, reporter)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, fmt.Errorf("fetch: write %s: %w", dest, err)
	}
	if total > 0 && n != total {
		return n, fmt.Errorf("fetch: size mismatch: expected %d, got %d", total, n)
	}

	if err := f.Close(); err != nil {
		return n, fmt.Errorf("fetch: close %s: %w", dest, err)
	}
	return n, nil
}

// archiveName derives the local file name from the URL path.
func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch: parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "bundle.zip", nil
	}
	return name, nil
}

// Extract unpacks the zip archive at src into dir and returns the extracted
// regular files relative to dir.
func Extract(src, dir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("fetch: open archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("fetch: resolve %s: %w", dir, err)
	}

	var files []string
	for _, zf := range r.File {
		target, err := safeJoin(root, zf.Name)
		if err != nil {
			return nil, err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("fetch: mkdir %s: %w", target, err)
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			// Symlinks and devices have no place in a shapefile bundle.
			continue
		}

		if err := extractFile(zf, target); err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(root, target)
		files = append(files, rel)
	}

	if len(files) == 0 {
		return nil, ErrEmptyBundle
	}
	return files, nil
}

func extractFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("fetch: mkdir %s: %w", filepath.Dir(target), err)
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("fetch: open entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("fetch: create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("fetch: extract %s: %w", zf.Name, err)
	}
	return out.Close()
}

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}
