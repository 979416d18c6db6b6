package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. A *StageError matches exactly one of them with errors.Is.
var (
	ErrInput      = errors.New("invalid input")
	ErrSource     = errors.New("source not accessible")
	ErrTool       = errors.New("tool failure")
	ErrFilesystem = errors.New("filesystem error")
	ErrDeploy     = errors.New("deploy failure")
)

// StageError reports the stage a run failed in.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying error.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
