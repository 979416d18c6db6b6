package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/ligustah/mapmaker/internal/finalize"
	mmhttp "github.com/ligustah/mapmaker/internal/http"
	"github.com/ligustah/mapmaker/internal/job"
	"github.com/ligustah/mapmaker/internal/progress"
	"github.com/ligustah/mapmaker/internal/tool"
)

// Config wires a Pipeline to its collaborators.
type Config struct {
	// WorkRoot is the directory working directories are created in.
	WorkRoot string

	// Workers bounds each fan-out. Zero runs every task at once.
	Workers int

	// Progress enables periodic progress output for downloads and fan-outs.
	Progress bool

	// Output is where progress is written. Default: os.Stderr
	Output io.Writer

	// HTTP configures the source download.
	HTTP mmhttp.Options

	Tools     tool.Set
	Runner    tool.Runner
	Finalizer *finalize.Finalizer
	Logger    progress.Logger
}

// Artifact carries the outputs of one stage to the next.
type Artifact struct {
	Bundle    string
	Layers    []string
	Tiles     string
	TileTree  string
	Archive   string
	Delivered string
}

// Stage is one step of a run. Failures are reported with Kind.
type Stage struct {
	Name string
	Kind error
	Run  func(ctx context.Context, j *job.Job, in Artifact) (Artifact, error)
}

// StageReport records how a stage went.
type StageReport struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Result describes a run. It is returned even when the run fails.
type Result struct {
	JobID       string
	WorkDir     string
	ArchivePath string
	Duration    time.Duration
	Stages      []StageReport
}

// Pipeline runs map builds.
type Pipeline struct {
	cfg    Config
	stages []Stage
}

// New creates a Pipeline. Runner and Finalizer are required.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = progress.Nop()
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = "."
	}
	if cfg.HTTP.RetryAttempts == 0 {
		cfg.HTTP = mmhttp.DefaultOptions()
	}

	p := &Pipeline{cfg: cfg}
	p.stages = p.buildStages()
	return p
}

// Stages returns the stages in the order Run executes them.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Run builds the map called name from the bundle at rawURL, clipped to
// bounds (the "[w,s,e,n]" form).
//
// Inputs are validated before anything on disk is touched. On failure the
// returned error is a *StageError. The working directory is kept unless the
// failing stage runs after cleanup.
func (p *Pipeline) Run(ctx context.Context, rawURL, bounds, name string) (*Result, error) {
	start := time.Now()
	res := &Result{}

	b, err := job.ParseBounds(bounds)
	if err != nil {
		return res, &StageError{Stage: "validate", Kind: ErrInput, Err: err}
	}
	j, err := job.New(rawURL, b, name, p.cfg.WorkRoot)
	if err != nil {
		return res, &StageError{Stage: "validate", Kind: ErrInput, Err: err}
	}
	res.JobID = j.ID()
	res.WorkDir = j.WorkDir()

	log := p.cfg.Logger
	log.Infof("Run %s: building %s %s from %s", j.ID(), j.Name(), j.Bounds(), j.URL())

	if err := j.Reset(); err != nil {
		return res, &StageError{Stage: "reset", Kind: ErrFilesystem, Err: err}
	}

	var art Artifact
	for i, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return p.fail(res, j, start, &StageError{Stage: st.Name, Kind: st.Kind, Err: err})
		}

		log.Infof("[%d/%d] %s", i+1, len(p.stages), st.Name)
		stageStart := time.Now()
		out, err := st.Run(ctx, j, art)
		res.Stages = append(res.Stages, StageReport{
			Name:     st.Name,
			Duration: time.Since(stageStart),
			Err:      err,
		})
		if err != nil {
			return p.fail(res, j, start, &StageError{Stage: st.Name, Kind: st.Kind, Err: err})
		}
		art = out
	}

	res.ArchivePath = art.Delivered
	res.Duration = time.Since(start)
	log.Infof("Finished %s in %s: %s", j.Name(), res.Duration.Round(time.Millisecond), res.ArchivePath)
	return res, nil
}

func (p *Pipeline) fail(res *Result, j *job.Job, start time.Time, err *StageError) (*Result, error) {
	res.Duration = time.Since(start)
	p.cfg.Logger.Errorf("%v", err)
	// A failed notify comes after cleanup.
	if _, statErr := os.Stat(j.WorkDir()); statErr == nil {
		p.cfg.Logger.Errorf("Working directory kept at %s", j.WorkDir())
	}
	return res, err
}

// Validate checks rawURL, bounds and name the way Run does, without running.
func Validate(rawURL, bounds, name string) error {
	b, err := job.ParseBounds(bounds)
	if err != nil {
		return &StageError{Stage: "validate", Kind: ErrInput, Err: err}
	}
	if _, err := job.New(rawURL, b, name, "."); err != nil {
		return &StageError{Stage: "validate", Kind: ErrInput, Err: err}
	}
	return nil
}
