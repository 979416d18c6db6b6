package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ligustah/mapmaker/internal/fanout"
	"github.com/ligustah/mapmaker/internal/fetch"
	"github.com/ligustah/mapmaker/internal/finalize"
	"github.com/ligustah/mapmaker/internal/job"
	"github.com/ligustah/mapmaker/internal/mbtiles"
	"github.com/ligustah/mapmaker/internal/packager"
	"github.com/ligustah/mapmaker/internal/progress"
)

// Stage names, in run order.
const (
	StageFetch        = "fetch"
	StageClip         = "clip"
	StageConvert      = "convert-layers"
	StageBuildTiles   = "build-tiles"
	StageVerifyTiles  = "verify-tiles"
	StagePackageTiles = "package-tiles"
	StageAddSuffix    = "add-suffix"
	StageArchive      = "archive"
	StageRelocate     = "relocate"
	StageCleanup      = "cleanup"
	StageNotify       = "notify"
)

func (p *Pipeline) buildStages() []Stage {
	return []Stage{
		{Name: StageFetch, Kind: ErrSource, Run: p.fetch},
		{Name: StageClip, Kind: ErrTool, Run: p.clip},
		{Name: StageConvert, Kind: ErrTool, Run: p.convertLayers},
		{Name: StageBuildTiles, Kind: ErrTool, Run: p.buildTiles},
		{Name: StageVerifyTiles, Kind: ErrTool, Run: p.verifyTiles},
		{Name: StagePackageTiles, Kind: ErrTool, Run: p.packageTiles},
		{Name: StageAddSuffix, Kind: ErrFilesystem, Run: p.addSuffix},
		{Name: StageArchive, Kind: ErrFilesystem, Run: p.archive},
		{Name: StageRelocate, Kind: ErrFilesystem, Run: p.relocate},
		{Name: StageCleanup, Kind: ErrFilesystem, Run: p.cleanup},
		{Name: StageNotify, Kind: ErrDeploy, Run: p.notify},
	}
}

func (p *Pipeline) fetch(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	bundle, err := fetch.Fetch(ctx, j.URL(), j.WorkDir(), fetch.Options{
		HTTPOptions: p.cfg.HTTP,
		Logger:      p.cfg.Logger,
		Progress:    p.cfg.Progress,
		Output:      p.cfg.Output,
	})
	if err != nil {
		return art, err
	}
	art.Bundle = bundle.Dir
	return art, nil
}

func (p *Pipeline) clip(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	if _, err := p.cfg.Runner.Run(ctx, p.cfg.Tools.ClipCommand(j.WorkDir(), j.Bounds().String())); err != nil {
		return art, err
	}

	clipped := filepath.Join(j.WorkDir(), job.ClippedDir)
	if info, err := os.Stat(clipped); err != nil || !info.IsDir() {
		return art, fmt.Errorf("%s produced no %s directory", p.cfg.Tools.Clip, job.ClippedDir)
	}
	return art, nil
}

// convertLayers converts every layer concurrently. All conversions run to
// completion; any failure fails the stage once the last one has reported.
func (p *Pipeline) convertLayers(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	clipped := filepath.Join(j.WorkDir(), job.ClippedDir)

	tasks := make([]fanout.Task, len(job.Layers))
	for i, layer := range job.Layers {
		cmd := p.cfg.Tools.ConvertCommand(clipped, layer, job.ShapefileExt, job.GeoJSONExt)
		tasks[i] = fanout.Task{
			Name: layer,
			Run: func(ctx context.Context) error {
				_, err := p.cfg.Runner.Run(ctx, cmd)
				return err
			},
		}
	}

	reporter := p.reporter("Converting layers", len(tasks))
	err := fanout.JoinAll(ctx, tasks, fanout.Options{
		Limit:   p.cfg.Workers,
		OnStart: func(string) { reporter.TaskStarted() },
		OnDone: func(layer string, err error, remaining int) {
			if err != nil {
				reporter.TaskFailed()
				p.cfg.Logger.Errorf("Converting %s failed: %v", layer, err)
				return
			}
			reporter.TaskCompleted()
			p.cfg.Logger.Infof("Converted %s (%d remaining)", layer, remaining)
		},
	})
	reporter.Stop()
	if err != nil {
		return art, err
	}

	art.Layers = make([]string, len(job.Layers))
	for i, layer := range job.Layers {
		art.Layers[i] = filepath.Join(job.ClippedDir, layer+job.GeoJSONExt)
	}
	return art, nil
}

func (p *Pipeline) buildTiles(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	output := filepath.Base(j.TilesPath())
	cmd := p.cfg.Tools.TileCommand(j.WorkDir(), output, job.MinZoom, job.MaxZoom, art.Layers)
	if _, err := p.cfg.Runner.Run(ctx, cmd); err != nil {
		return art, err
	}
	art.Tiles = j.TilesPath()
	return art, nil
}

func (p *Pipeline) verifyTiles(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	s, err := mbtiles.Verify(ctx, art.Tiles, job.MinZoom, job.MaxZoom)
	if err != nil {
		return art, err
	}
	p.cfg.Logger.Infof("%s holds %d tiles at zoom %d-%d", filepath.Base(art.Tiles), s.TileCount, s.MinZoom, s.MaxZoom)
	return art, nil
}

func (p *Pipeline) packageTiles(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	tree := j.TileTreeDir()
	if _, err := p.cfg.Runner.Run(ctx, p.cfg.Tools.UnpackCommand(j.WorkDir(), art.Tiles, tree)); err != nil {
		return art, err
	}
	if _, err := p.cfg.Runner.Run(ctx, p.cfg.Tools.DecompressCommand(j.WorkDir(), tree, job.TileExt)); err != nil {
		return art, err
	}
	art.TileTree = tree
	return art, nil
}

func (p *Pipeline) addSuffix(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	res, err := packager.AddSuffix(ctx, art.TileTree, job.TileExt, packager.SuffixOptions{
		Limit: p.cfg.Workers,
		OnDone: func(path string, err error, remaining int) {
			if err != nil {
				p.cfg.Logger.Errorf("Renaming %s failed: %v", path, err)
			}
		},
	})
	if err != nil {
		return art, err
	}
	p.cfg.Logger.Infof("Renamed %d tiles (%d already suffixed)", res.Renamed, res.Skipped)
	return art, nil
}

func (p *Pipeline) archive(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	path, err := packager.Package(j.WorkDir(), j.Name(), j.Bounds())
	if err != nil {
		return art, err
	}
	art.Archive = path
	return art, nil
}

func (p *Pipeline) relocate(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	dest, err := p.cfg.Finalizer.Relocate(art.Archive)
	if err != nil {
		return art, err
	}
	art.Delivered = dest
	return art, nil
}

func (p *Pipeline) cleanup(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	return art, p.cfg.Finalizer.Cleanup(j.WorkDir())
}

func (p *Pipeline) notify(ctx context.Context, j *job.Job, art Artifact) (Artifact, error) {
	return art, p.cfg.Finalizer.Notify(ctx, finalize.DeploymentFor(j, art.Delivered))
}

// reporter returns a started progress reporter for a fan-out, or one that
// prints nothing when progress output is off.
func (p *Pipeline) reporter(label string, tasks int) *progress.Reporter {
	r := progress.NewReporter(progress.Options{
		Label:      label,
		TotalTasks: tasks,
		Output:     p.cfg.Output,
	})
	if p.cfg.Progress {
		r.Start()
	}
	return r
}
