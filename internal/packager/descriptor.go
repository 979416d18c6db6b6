package packager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ligustah/mapmaker/internal/job"
)

// DescriptorFile is the name of the descriptor inside the tile tree.
const DescriptorFile = "config.json"

// Descriptor tells the rendering client where the tiles are and what they cover.
type Descriptor struct {
	MaptilesURL string     `json:"maptiles_url"`
	MinZoom     int        `json:"min_zoom"`
	MaxZoom     int        `json:"max_zoom"`
	Bounds      job.Bounds `json:"bounds"`
}

// NewDescriptor returns the descriptor for the map called name.
func NewDescriptor(name string, bounds job.Bounds) Descriptor {
	return Descriptor{
		MaptilesURL: name + job.ArchiveExt,
		MinZoom:     job.MinZoom,
		MaxZoom:     job.MaxZoom,
		Bounds:      bounds,
	}
}

// WriteDescriptor writes config.json into dir and returns its path.
// The file is flushed to disk and closed before WriteDescriptor returns.
func WriteDescriptor(dir, name string, bounds job.Bounds) (string, error) {
	path := filepath.Join(dir, DescriptorFile)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("packager: create descriptor: %w", err)
	}

	if err := json.NewEncoder(f).Encode(NewDescriptor(name, bounds)); err != nil {
		f.Close()
		return "", fmt.Errorf("packager: encode descriptor: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("packager: sync descriptor: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("packager: close descriptor: %w", err)
	}
	return path, nil
}

// ReadDescriptor reads a descriptor file.
func ReadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("packager: read descriptor: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("packager: parse descriptor: %w", err)
	}
	return d, nil
}
