// Package tool runs the external geodata engines the pipeline delegates to.
//
// Commands are built as an argument list and executed directly, never through
// a shell. The adapter only detects completion: stdout lines are forwarded as
// informational events, stderr lines as error events, and the exit status
// decides success. Output is never parsed.
//
// # Commands
//
//	Clip        mapcutter -b=[w,s,e,n]
//	Convert     ogr2ogr -f GeoJSON {layer}.json {layer}.shp
//	Tile        tippecanoe -z 16 -Z 14 -o {name}.mbtiles clipped/{layer}.json...
//	Unpack      mb-util --image_format=pbf {name}.mbtiles {name}
//	Decompress  gzip -d -r -S .pbf {name}
package tool
