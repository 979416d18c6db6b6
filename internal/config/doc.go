// Package config defines configuration structures for the mapmaker CLI.
//
// Configuration is layered, later sources overriding earlier ones:
//   - Built-in defaults ([Default])
//   - YAML configuration file ([LoadFromFile])
//   - Environment variables (MAPMAKER_ prefix, [Config.LoadFromEnv])
//   - Command-line flags ([Config.Merge])
//
// # File Format
//
//	work_root: /var/tmp/mapmaker
//	destination: /srv/maps
//	workers: 4
//	progress: true
//	tools:
//	  clip: mapcutter
//	  convert: ogr2ogr
//	  tile: tippecanoe
//	  unpack: mb-util
//	  decompress: gzip
//	http:
//	  timeout: 30m
//	  retry:
//	    attempts: 5
//	    backoff: 1s
//	    max_backoff: 30s
//	upload:
//	  bucket: s3://maps?region=us-east-1
//	  prefix: tiles/
//
// # Environment
//
//	MAPMAKER_WORK_ROOT, MAPMAKER_DESTINATION, MAPMAKER_WORKERS,
//	MAPMAKER_PROGRESS, MAPMAKER_TOOL_{CLIP,CONVERT,TILE,UNPACK,DECOMPRESS},
//	MAPMAKER_HTTP_TIMEOUT, MAPMAKER_RETRY_ATTEMPTS, MAPMAKER_RETRY_BACKOFF,
//	MAPMAKER_RETRY_MAX_BACKOFF, MAPMAKER_UPLOAD_BUCKET, MAPMAKER_UPLOAD_PREFIX
//
// A workers value of 0 runs every fan-out task at once.
package config
