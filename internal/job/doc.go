// Package job holds the per-run state of a map build.
//
// A [Job] is created once from the command-line input and is read-only
// afterwards: every pipeline stage receives the same *Job and derives its
// paths from it.
//
// # Working Directory Layout
//
//	{workRoot}/{name}/                      working directory (Job.WorkDir)
//	{workRoot}/{name}/{bundle}.zip          downloaded source bundle
//	{workRoot}/{name}/clipped/{layer}.shp   clipped shapefiles
//	{workRoot}/{name}/clipped/{layer}.json  per-layer GeoJSON
//	{workRoot}/{name}/{name}.mbtiles        tile database
//	{workRoot}/{name}/{name}/               exploded tile tree + config.json
//	{workRoot}/{name}/{name}.zip            final archive
package job
