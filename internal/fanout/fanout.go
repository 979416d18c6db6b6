// Package fanout launches independent tasks together and waits for all of them.
package fanout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work in a fan-out set.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Options configures JoinAll.
type Options struct {
	// Limit bounds the number of tasks running at once. Zero means unbounded.
	Limit int

	// OnStart is called as each task begins.
	OnStart func(name string)

	// OnDone is called exactly once per task with the task's error and the
	// number of tasks still outstanding after this one.
	OnDone func(name string, err error, remaining int)
}

// TaskError records a failed task.
type TaskError struct {
	Name string
	Err  error
}

// JoinError is returned by JoinAll when one or more tasks failed.
// Failed is sorted by task name.
type JoinError struct {
	Total  int
	Failed []TaskError
}

func (e *JoinError) Error() string {
	names := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		names[i] = f.Name
	}
	return fmt.Sprintf("fanout: %d of %d tasks failed (%s): %v",
		len(e.Failed), e.Total, strings.Join(names, ", "), e.Failed[0].Err)
}

// Unwrap exposes every task error to errors.Is and errors.As.
func (e *JoinError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// JoinAll runs every task and returns once all of them have reported.
//
// A failing task does not cancel its siblings; the join still waits for the
// whole set. If any task failed the result is a *JoinError listing all of
// them. An empty set returns nil immediately.
func JoinAll(ctx context.Context, tasks []Task, opts Options) error {
	if len(tasks) == 0 {
		return nil
	}

	var remaining atomic.Int64
	remaining.Store(int64(len(tasks)))

	var (
		mu     sync.Mutex
		failed []TaskError
	)

	// No errgroup.WithContext: a failure must not cancel the other tasks.
	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if opts.OnStart != nil {
				opts.OnStart(task.Name)
			}

			err := runTask(ctx, task)
			if err != nil {
				mu.Lock()
				failed = append(failed, TaskError{Name: task.Name, Err: err})
				mu.Unlock()
			}

			left := remaining.Add(-1)
			if opts.OnDone != nil {
				opts.OnDone(task.Name, err, int(left))
			}
			return err
		})
	}

	g.Wait()

	if len(failed) == 0 {
		return nil
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Name < failed[j].Name })
	return &JoinError{Total: len(tasks), Failed: failed}
}

func runTask(ctx context.Context, task Task) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx)
}
