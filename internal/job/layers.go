package job

// Zoom range of every tile set produced. Not configurable per job.
const (
	MinZoom = 14
	MaxZoom = 16
)

// Layers is the fixed, ordered set of source layers. Every layer must be
// present in the clipped bundle.
var Layers = []string{
	"gis_osm_roads_free_1",
	"gis_osm_water_a_free_1",
	"gis_osm_waterways_free_1",
	"gis_osm_natural_a_free_1",
	"gis_osm_landuse_a_free_1",
	"gis_osm_buildings_a_free_1",
	"gis_osm_pois_a_free_1",
	"gis_osm_places_a_free_1",
}

// File extensions used across stages.
const (
	ShapefileExt = ".shp"
	GeoJSONExt   = ".json"
	MBTilesExt   = ".mbtiles"
	ArchiveExt   = ".zip"
	TileExt      = ".pbf"
)
