package tool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/ligustah/mapmaker/internal/progress"
)

// stderrTail is how many trailing stderr lines an ExitError keeps.
const stderrTail = 20

// ErrNotInstalled is returned when a tool binary cannot be found.
var ErrNotInstalled = errors.New("tool: not installed")

// Command is a single external tool invocation.
type Command struct {
	// Name is the executable, looked up in PATH unless it contains a separator.
	Name string

	// Args are passed to the executable as-is.
	Args []string

	// Dir is the working directory of the process.
	Dir string
}

// String renders the command for log output.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result describes a finished invocation.
type Result struct {
	ExitCode int

	// Stderr holds the last lines the tool wrote to its error stream.
	Stderr []string
}

// ExitError is returned when a tool exits with a non-zero status.
type ExitError struct {
	Command  Command
	ExitCode int
	Stderr   []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("tool: %s exited with status %d", e.Command.Name, e.ExitCode)
	if len(e.Stderr) > 0 {
		msg += ": " + e.Stderr[len(e.Stderr)-1]
	}
	return msg
}

// CheckInstalled reports an ErrNotInstalled error naming every executable in
// names that cannot be found.
func CheckInstalled(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNotInstalled, strings.Join(missing, ", "))
	}
	return nil
}

// Runner invokes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands as local processes.
type ExecRunner struct {
	Logger progress.Logger
}

// NewExecRunner creates an ExecRunner that forwards tool output to logger.
func NewExecRunner(logger progress.Logger) *ExecRunner {
	if logger == nil {
		logger = progress.Nop()
	}
	return &ExecRunner{Logger: logger}
}

// Run starts cmd and blocks until it exits or ctx is cancelled.
// A non-zero exit status is returned as *ExitError alongside the Result.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, errors.New("tool: command name is empty")
	}

	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotInstalled, cmd.Name, err)
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	// Own process group so cancellation also reaches children the tool spawns.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("tool: stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("tool: stderr pipe: %w", err)
	}

	r.Logger.Infof("$ %s", cmd)
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("tool: start %s: %w", cmd.Name, err)
	}

	tail := newLineTail(stderrTail)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forwardLines(stdout, func(line string) {
			r.Logger.Infof("%s: %s", cmd.Name, line)
		})
	}()
	go func() {
		defer wg.Done()
		forwardLines(stderr, func(line string) {
			tail.add(line)
			r.Logger.Errorf("%s: %s", cmd.Name, line)
		})
	}()
	// Pipes must be drained before Wait closes them.
	wg.Wait()

	waitErr := c.Wait()
	result := &Result{Stderr: tail.lines()}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("tool: %s cancelled: %w", cmd.Name, ctx.Err())
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("tool: wait %s: %w", cmd.Name, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Command: cmd, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	return result, nil
}

func forwardLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			emit(line)
		}
	}
	// Drain whatever is left if a line was too long for the scanner.
	io.Copy(io.Discard, r)
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu  sync.Mutex
	n   int
	buf []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
