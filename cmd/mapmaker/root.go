package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ligustah/mapmaker/internal/config"
	"github.com/ligustah/mapmaker/internal/deploy"
	"github.com/ligustah/mapmaker/internal/finalize"
	"github.com/ligustah/mapmaker/internal/pipeline"
	"github.com/ligustah/mapmaker/internal/progress"
	"github.com/ligustah/mapmaker/internal/tool"
)

// errUsage marks errors caused by the command line itself.
var errUsage = errors.New("invalid arguments")

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapmaker [flags] <url> <bounds> <name>",
		Short: "Build an offline vector tile map from a shapefile bundle",
		Long: `Download a zipped shapefile bundle, clip it to a bounding box and build a
zip archive of vector tiles (zoom 14-16) with a config.json descriptor.

  url     HTTP(S) URL of the zipped shapefile bundle
  bounds  bounding box as "[west,south,east,north]"
  name    name of the map, used for the archive and its top-level folder

The archive is saved to ~/Desktop unless a destination is configured.`,
		Example:       `  mapmaker https://download.geofabrik.de/north-america/canada/quebec-latest-free.shp.zip "[-73.986345,45.410246,-73.47426,45.705838]" Montreal`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(3)(cmd, args); err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			return build(cmd, cfg, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	fl := cmd.Flags()
	fl.StringP("config", "c", "", "YAML configuration file")
	fl.String("work-root", "", "directory working directories are created in (default \".\")")
	fl.String("destination", "", "directory the archive is saved to (default ~/Desktop)")
	fl.Int("workers", 0, "max concurrent conversions and renames, 0 for unbounded")
	fl.Bool("progress", false, "show progress output")
	fl.String("upload-bucket", "", "bucket URL to deploy the map to (s3://, gs://, file://)")
	fl.String("upload-prefix", "", "object prefix inside the upload bucket")

	return cmd
}

// loadConfig layers defaults, the config file, the environment and the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	fl := cmd.Flags()

	cfg := config.Default()
	if path, _ := fl.GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	if fl.Changed("work-root") {
		cfg.WorkRoot, _ = fl.GetString("work-root")
	}
	if fl.Changed("destination") {
		cfg.Destination, _ = fl.GetString("destination")
	}
	if fl.Changed("workers") {
		cfg.Workers, _ = fl.GetInt("workers")
	}
	if fl.Changed("progress") {
		cfg.Progress, _ = fl.GetBool("progress")
	}
	if fl.Changed("upload-bucket") {
		cfg.Upload.Bucket, _ = fl.GetString("upload-bucket")
	}
	if fl.Changed("upload-prefix") {
		cfg.Upload.Prefix, _ = fl.GetString("upload-prefix")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func build(cmd *cobra.Command, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	ctx := cmd.Context()
	rawURL, bounds, name := args[0], args[1], args[2]

	// Reject bad input before opening buckets or looking for tools.
	if err := pipeline.Validate(rawURL, bounds, name); err != nil {
		return err
	}
	if err := tool.CheckInstalled(cfg.Tools.Names()...); err != nil {
		return err
	}

	logger := progress.NewLogger(stderr)

	var uploader finalize.Uploader
	if cfg.Upload.Bucket != "" {
		up, err := deploy.Open(ctx, cfg.Upload.Bucket, cfg.Upload.Prefix, logger)
		if err != nil {
			return fmt.Errorf("%w: %v", pipeline.ErrDeploy, err)
		}
		defer up.Close()
		uploader = up
	}

	p := pipeline.New(pipeline.Config{
		WorkRoot:  cfg.WorkRoot,
		Workers:   cfg.Workers,
		Progress:  cfg.Progress,
		Output:    stderr,
		HTTP:      cfg.HTTPOptions(),
		Tools:     cfg.Tools,
		Runner:    tool.NewExecRunner(logger),
		Finalizer: finalize.New(cfg.Destination, uploader, logger),
		Logger:    logger,
	})

	res, err := p.Run(ctx, rawURL, bounds, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.ArchivePath)
	return nil
}
