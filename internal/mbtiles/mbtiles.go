// Package mbtiles inspects tile databases produced by the tile builder.
//
// An MBTiles file is a SQLite database with a metadata key/value table and a
// tiles table keyed by zoom_level, tile_column and tile_row. Only read access
// is needed here.
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// Validation errors.
var (
	ErrMissing   = errors.New("mbtiles: tile database not found")
	ErrNoTiles   = errors.New("mbtiles: tile database is empty")
	ErrZoomRange = errors.New("mbtiles: zoom levels outside expected range")
	ErrBadFormat = errors.New("mbtiles: not a tile database")
)

// Summary describes the content of a tile database.
type Summary struct {
	Name      string
	Format    string
	MinZoom   int
	MaxZoom   int
	TileCount int64

	// Metadata holds every row of the metadata table.
	Metadata map[string]string
}

// Inspect opens the database at path read-only and summarises it.
func Inspect(ctx context.Context, path string) (*Summary, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("mbtiles: stat %s: %w", path, err)
	}

	dsn, err := readOnlyDSN(path)
	if err != nil {
		return nil, fmt.Errorf("mbtiles: open %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("mbtiles: open %s: %w", path, err)
	}
	defer db.Close()

	meta, err := readMetadata(ctx, db)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Name:     meta["name"],
		Format:   meta["format"],
		Metadata: meta,
	}

	var minZoom, maxZoom sql.NullInt64
	row := db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(zoom_level), MAX(zoom_level) FROM tiles`)
	if err := row.Scan(&s.TileCount, &minZoom, &maxZoom); err != nil {
		return nil, fmt.Errorf("%w: query tiles: %v", ErrBadFormat, err)
	}

	// Prefer the zoom range actually present; fall back to the declared one.
	s.MinZoom, s.MaxZoom = int(minZoom.Int64), int(maxZoom.Int64)
	if !minZoom.Valid {
		s.MinZoom = atoiOr(meta["minzoom"], -1)
		s.MaxZoom = atoiOr(meta["maxzoom"], -1)
	}

	return s, nil
}

// Verify checks that the database at path has tiles and that both its
// declared and actual zoom levels lie within [minZoom, maxZoom].
func Verify(ctx context.Context, path string, minZoom, maxZoom int) (*Summary, error) {
	s, err := Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	if s.TileCount == 0 {
		return s, ErrNoTiles
	}
	if s.MinZoom < minZoom || s.MaxZoom > maxZoom {
		return s, fmt.Errorf("%w: tiles span %d..%d, want %d..%d", ErrZoomRange, s.MinZoom, s.MaxZoom, minZoom, maxZoom)
	}

	for _, key := range []string{"minzoom", "maxzoom"} {
		v, ok := s.Metadata[key]
		if !ok {
			continue
		}
		z, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%w: metadata %s=%q", ErrBadFormat, key, v)
		}
		if z < minZoom || z > maxZoom {
			return s, fmt.Errorf("%w: metadata %s=%d, want %d..%d", ErrZoomRange, key, z, minZoom, maxZoom)
		}
	}
	return s, nil
}

func readMetadata(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("%w: query metadata: %v", ErrBadFormat, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("mbtiles: scan metadata: %w", err)
		}
		meta[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mbtiles: read metadata: %w", err)
	}
	return meta, nil
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// readOnlyDSN returns a read-only SQLite URI for path. The path is escaped so
// that '?', '#' and '%' in directory names are not read as URI syntax.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}
	return u.String(), nil
}
