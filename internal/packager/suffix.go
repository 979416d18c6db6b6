package packager

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ligustah/mapmaker/internal/fanout"
)

// SuffixOptions configures AddSuffix.
type SuffixOptions struct {
	// Limit bounds concurrent renames. Zero means unbounded.
	Limit int

	// OnStart and OnDone are passed through to the fan-out.
	OnStart func(path string)
	OnDone  func(path string, err error, remaining int)
}

// SuffixResult reports what AddSuffix did.
type SuffixResult struct {
	Renamed int
	Skipped int
}

// AddSuffix walks dir and renames every regular file that does not already
// end in suffix to path+suffix. Files that already carry it are left alone,
// so running AddSuffix twice never doubles the suffix.
//
// Only the descriptor file is exempt.
func AddSuffix(ctx context.Context, dir, suffix string, opts SuffixOptions) (*SuffixResult, error) {
	if suffix == "" {
		return nil, fmt.Errorf("packager: suffix is empty")
	}

	var (
		tasks  []fanout.Task
		result SuffixResult
	)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) || (d.Name() == DescriptorFile && filepath.Dir(path) == filepath.Clean(dir)) {
			result.Skipped++
			return nil
		}

		tasks = append(tasks, fanout.Task{
			Name: path,
			Run: func(ctx context.Context) error {
				return os.Rename(path, path+suffix)
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("packager: walk %s: %w", dir, err)
	}

	err = fanout.JoinAll(ctx, tasks, fanout.Options{
		Limit:   opts.Limit,
		OnStart: opts.OnStart,
		OnDone:  opts.OnDone,
	})
	if err != nil {
		return nil, fmt.Errorf("packager: add suffix: %w", err)
	}

	result.Renamed = len(tasks)
	return &result, nil
}
