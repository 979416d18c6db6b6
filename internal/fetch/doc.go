// Package fetch downloads a regional shapefile bundle and unpacks it.
//
// The bundle is streamed to disk inside the working directory and then
// extracted next to it, which is where the clip tool expects the raw
// shapefiles. Archive entries that would escape the destination directory are
// rejected.
//
// # Usage
//
//	bundle, err := fetch.Fetch(ctx, url, workDir, fetch.Options{
//	    HTTPOptions: mmhttp.DefaultOptions(),
//	    Logger:      logger,
//	})
//	// bundle.Archive, bundle.Dir, bundle.Files
package fetch
