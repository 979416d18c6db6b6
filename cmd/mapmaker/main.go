package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/mapmaker/internal/pipeline"
	"github.com/ligustah/mapmaker/internal/tool"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSourceNotAccess = 3
	ExitToolFailure     = 4
	ExitFilesystemError = 5
	ExitDeployFailure   = 6
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)

	if len(args) == 0 {
		cmd.SetOut(stderr)
		cmd.Usage()
		return ExitInvalidArgs
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "[mapmaker] Interrupted")
		return ExitGeneralError
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errUsage), errors.Is(err, pipeline.ErrInput):
		return ExitInvalidArgs
	case errors.Is(err, pipeline.ErrSource):
		return ExitSourceNotAccess
	case errors.Is(err, pipeline.ErrTool), errors.Is(err, tool.ErrNotInstalled):
		return ExitToolFailure
	case errors.Is(err, pipeline.ErrFilesystem):
		return ExitFilesystemError
	case errors.Is(err, pipeline.ErrDeploy):
		return ExitDeployFailure
	default:
		return ExitGeneralError
	}
}
