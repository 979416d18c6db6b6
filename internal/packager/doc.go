// Package packager turns an exploded tile tree into a deployable archive.
//
// # Steps
//
//   - [AddSuffix] renames every decompressed tile so it carries the tile
//     suffix exactly once. Renames fan out, one task per file.
//   - [WriteDescriptor] writes config.json describing the tile set.
//   - [Archive] zips the tree under a single top-level folder.
//
// [Package] runs the last two in order. The descriptor file is synced and
// closed before the archive starts reading the tree.
//
// # Descriptor Format
//
//	{
//	  "maptiles_url": "Montreal.zip",
//	  "min_zoom": 14,
//	  "max_zoom": 16,
//	  "bounds": [-73.986345, 45.410246, -73.47426, 45.705838]
//	}
package packager
