package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ligustah/mapmaker/internal/fanout"
	"github.com/ligustah/mapmaker/internal/job"
	"github.com/ligustah/mapmaker/internal/pipeline"
	"github.com/ligustah/mapmaker/internal/tool"
)

const montrealBounds = "[-73.986345,45.410246,-73.47426,45.705838]"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	code, _, stderr := runCLI(t)
	if code != ExitInvalidArgs {
		t.Errorf("expected exit %d, got %d", ExitInvalidArgs, code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("expected usage on stderr, got %q", stderr)
	}
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, version) {
		t.Errorf("expected version %q in %q", version, stdout)
	}
}

func TestRunHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "--help")
	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "<url> <bounds> <name>") {
		t.Errorf("expected usage line in help, got %q", stdout)
	}
}

func TestRunInvalidArgs(t *testing.T) {
	workRoot := t.TempDir()
	base := []string{"--work-root", workRoot, "--destination", t.TempDir()}

	tests := []struct {
		name string
		args []string
	}{
		{"too few args", []string{"https://example.com/q.zip", montrealBounds}},
		{"too many args", []string{"https://example.com/q.zip", montrealBounds, "Montreal", "extra"}},
		{"unknown flag", []string{"--frobnicate", "https://example.com/q.zip", montrealBounds, "Montreal"}},
		{"missing url", []string{"", montrealBounds, "Montreal"}},
		{"bad bounds", []string{"https://example.com/q.zip", "[1,2]", "Montreal"}},
		{"bad name", []string{"https://example.com/q.zip", montrealBounds, "../Montreal"}},
		{"negative workers", []string{"--workers", "-2", "https://example.com/q.zip", montrealBounds, "Montreal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, append(base, tt.args...)...)
			if code != ExitInvalidArgs {
				t.Errorf("expected exit %d, got %d (stderr %q)", ExitInvalidArgs, code, stderr)
			}

			entries, err := os.ReadDir(workRoot)
			if err != nil {
				t.Fatalf("read work root: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("invalid input must not touch the work root, found %d entries", len(entries))
			}
		})
	}
}

func TestRunMissingTool(t *testing.T) {
	t.Setenv("MAPMAKER_TOOL_CLIP", "mapmaker-no-such-clipper")

	code, _, stderr := runCLI(t,
		"--work-root", t.TempDir(),
		"--destination", t.TempDir(),
		"https://example.com/q.zip", montrealBounds, "Montreal",
	)
	if code != ExitToolFailure {
		t.Errorf("expected exit %d, got %d", ExitToolFailure, code)
	}
	if !strings.Contains(stderr, "mapmaker-no-such-clipper") {
		t.Errorf("expected missing tool named, got %q", stderr)
	}
}

func TestRunBadConfigFile(t *testing.T) {
	code, _, _ := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"https://example.com/q.zip", montrealBounds, "Montreal")
	if code != ExitInvalidArgs {
		t.Errorf("expected exit %d, got %d", ExitInvalidArgs, code)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapmaker.yaml")
	content := "workers: 4\ndestination: /from/file\nwork_root: /from/file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MAPMAKER_WORKERS", "6")
	t.Setenv("MAPMAKER_DESTINATION", "/from/env")

	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	if err := cmd.ParseFlags([]string{"--config", path, "--destination", "/from/flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.WorkRoot != "/from/file" {
		t.Errorf("expected work root from file, got %s", cfg.WorkRoot)
	}
	if cfg.Workers != 6 {
		t.Errorf("expected workers from env, got %d", cfg.Workers)
	}
	if cfg.Destination != "/from/flag" {
		t.Errorf("expected destination from flag, got %s", cfg.Destination)
	}
}

func TestExitCode(t *testing.T) {
	stageErr := func(kind, err error) error {
		return &pipeline.StageError{Stage: "test", Kind: kind, Err: err}
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", fmt.Errorf("%w: accepts 3 arg(s)", errUsage), ExitInvalidArgs},
		{"input", stageErr(pipeline.ErrInput, job.ErrMissingURL), ExitInvalidArgs},
		{"source", stageErr(pipeline.ErrSource, errors.New("404")), ExitSourceNotAccess},
		{"tool", stageErr(pipeline.ErrTool, &tool.ExitError{ExitCode: 1}), ExitToolFailure},
		{"fan-out", stageErr(pipeline.ErrTool, &fanout.JoinError{Total: 8, Failed: []fanout.TaskError{{Name: "roads", Err: errors.New("x")}}}), ExitToolFailure},
		{"not installed", fmt.Errorf("%w: tippecanoe", tool.ErrNotInstalled), ExitToolFailure},
		{"filesystem", stageErr(pipeline.ErrFilesystem, os.ErrPermission), ExitFilesystemError},
		{"deploy", stageErr(pipeline.ErrDeploy, errors.New("denied")), ExitDeployFailure},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
