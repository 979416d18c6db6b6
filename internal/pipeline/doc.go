// Package pipeline turns a shapefile bundle into a packaged vector tile map.
//
// A run validates its inputs, resets the working directory and then executes
// a fixed sequence of stages on the calling goroutine:
//
//	fetch          download and unpack the source bundle
//	clip           cut the bundle down to the bounding box
//	convert-layers convert every clipped layer to GeoJSON (fan-out)
//	build-tiles    build the tile database at zoom 14-16
//	verify-tiles   check the tile database is usable
//	package-tiles  explode the database into a tile tree and gunzip it
//	add-suffix     give every tile the .pbf suffix (fan-out)
//	archive        write config.json and zip the tree
//	relocate       move the archive to the destination
//	cleanup        remove the working directory
//	notify         hand the map to the uploader, if any
//
// The first failing stage ends the run. Its error is a *StageError whose kind
// can be tested with errors.Is (ErrInput, ErrSource, ErrTool, ErrFilesystem,
// ErrDeploy), and the working directory is left in place for inspection.
//
// # Usage
//
//	p := pipeline.New(pipeline.Config{
//	    WorkRoot:  ".",
//	    Tools:     tool.DefaultSet(),
//	    Runner:    tool.NewExecRunner(logger),
//	    Finalizer: finalize.New(destination, nil, logger),
//	    Logger:    logger,
//	})
//
//	res, err := p.Run(ctx, url, "[-73.98,45.41,-73.47,45.70]", "Montreal")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.ArchivePath)
package pipeline
