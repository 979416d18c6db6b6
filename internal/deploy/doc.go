// Package deploy publishes finished maps to object storage.
//
// A deployment is two objects stored side by side under an optional prefix:
//
//	{bucket}/{prefix}{name}.zip     (the archive)
//	{bucket}/{prefix}{name}.json    (the deployment record, written last)
//
// The record is only written once the archive upload has been committed, so a
// record always points at a complete archive.
//
// # Usage
//
//	up, err := deploy.Open(ctx, "s3://maps?region=us-east-1", "tiles/", logger)
//	if err != nil {
//	    return err
//	}
//	defer up.Close()
//
//	finalizer := finalize.New(destination, up, logger)
//
// Bucket URLs are opened with gocloud.dev/blob, so the matching driver
// (s3blob, gcsblob, fileblob, memblob) has to be linked in by the caller.
//
// # Record Format
//
//	{
//	  "name": "Montreal",
//	  "archive": "tiles/Montreal.zip",
//	  "min_zoom": 14,
//	  "max_zoom": 16,
//	  "bounds": [-73.986345, 45.410246, -73.47426, 45.705838],
//	  "size": 1048576,
//	  "checksum": "9f86d0...",
//	  "run_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
//	  "deployed_at": "2025-01-15T10:30:00Z"
//	}
package deploy
