package progress

import (
	"io"
	"log"
	"os"
)

// Prefix is prepended to every line written by NewLogger and the Reporter.
const Prefix = "[mapmaker] "

// Logger receives diagnostic output from the pipeline and the tool adapters.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type stdLogger struct {
	info *log.Logger
	err  *log.Logger
}

// NewLogger returns a Logger writing prefixed lines to w.
// If w is nil, os.Stderr is used.
func NewLogger(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &stdLogger{
		info: log.New(w, Prefix, 0),
		err:  log.New(w, Prefix+"Error: ", 0),
	}
}

func (l *stdLogger) Infof(format string, args ...any)  { l.info.Printf(format, args...) }
func (l *stdLogger) Errorf(format string, args ...any) { l.err.Printf(format, args...) }

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }
