package tool

import (
	"path/filepath"
	"strconv"
)

// Set names the executables used for each kind of invocation.
type Set struct {
	Clip       string `yaml:"clip"`
	Convert    string `yaml:"convert"`
	Tile       string `yaml:"tile"`
	Unpack     string `yaml:"unpack"`
	Decompress string `yaml:"decompress"`
}

// DefaultSet returns the tools found on a typical installation.
func DefaultSet() Set {
	return Set{
		Clip:       "mapcutter",
		Convert:    "ogr2ogr",
		Tile:       "tippecanoe",
		Unpack:     "mb-util",
		Decompress: "gzip",
	}
}

// Names returns every configured executable, in pipeline order.
func (s Set) Names() []string {
	return []string{s.Clip, s.Convert, s.Tile, s.Unpack, s.Decompress}
}

// ClipCommand clips the raw bundle in dir to bounds, writing dir/clipped.
// bounds is the "[w,s,e,n]" form.
func (s Set) ClipCommand(dir, bounds string) Command {
	return Command{
		Name: s.Clip,
		Args: []string{"-b=" + bounds},
		Dir:  dir,
	}
}

// ConvertCommand converts layer.shp to layer.json inside clippedDir.
func (s Set) ConvertCommand(clippedDir, layer, shpExt, jsonExt string) Command {
	return Command{
		Name: s.Convert,
		Args: []string{"-f", "GeoJSON", layer + jsonExt, layer + shpExt},
		Dir:  clippedDir,
	}
}

// TileCommand builds output from inputs (paths relative to dir).
func (s Set) TileCommand(dir, output string, minZoom, maxZoom int, inputs []string) Command {
	args := []string{
		"-z", strconv.Itoa(maxZoom),
		"-Z", strconv.Itoa(minZoom),
		"-o", output,
	}
	args = append(args, inputs...)
	return Command{Name: s.Tile, Args: args, Dir: dir}
}

// UnpackCommand explodes the tile database into a directory tree of pbf tiles.
func (s Set) UnpackCommand(dir, tilesFile, treeDir string) Command {
	return Command{
		Name: s.Unpack,
		Args: []string{"--image_format=pbf", filepath.Base(tilesFile), filepath.Base(treeDir)},
		Dir:  dir,
	}
}

// DecompressCommand gunzips every tile under treeDir in place. The decompressed
// files lose their suffix.
func (s Set) DecompressCommand(dir, treeDir, suffix string) Command {
	return Command{
		Name: s.Decompress,
		Args: []string{"-d", "-r", "-S", suffix, filepath.Base(treeDir)},
		Dir:  dir,
	}
}
