package job

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidBounds is returned when a bounding box cannot be parsed or is not ordered.
var ErrInvalidBounds = errors.New("job: invalid bounds")

// Bounds is a bounding box in degrees, in west, south, east, north order.
type Bounds [4]float64

// West returns the western longitude.
func (b Bounds) West() float64 { return b[0] }

// South returns the southern latitude.
func (b Bounds) South() float64 { return b[1] }

// East returns the eastern longitude.
func (b Bounds) East() float64 { return b[2] }

// North returns the northern latitude.
func (b Bounds) North() float64 { return b[3] }

// ParseBounds parses a bounding box written as "[west,south,east,north]".
// The brackets are optional and whitespace around values is ignored.
func ParseBounds(s string) (Bounds, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("%w: expected 4 values, got %d in %q", ErrInvalidBounds, len(parts), s)
	}

	var b Bounds
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: value %d: %v", ErrInvalidBounds, i, err)
		}
		b[i] = v
	}

	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// Validate checks that the box is finite, within WGS84 range and ordered.
func (b Bounds) Validate() error {
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %d is not finite", ErrInvalidBounds, i)
		}
	}
	if b.West() < -180 || b.East() > 180 {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidBounds)
	}
	if b.South() < -90 || b.North() > 90 {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBounds)
	}
	if b.West() >= b.East() {
		return fmt.Errorf("%w: west %v must be less than east %v", ErrInvalidBounds, b.West(), b.East())
	}
	if b.South() >= b.North() {
		return fmt.Errorf("%w: south %v must be less than north %v", ErrInvalidBounds, b.South(), b.North())
	}
	return nil
}

// String formats the box as "[w,s,e,n]" using the shortest exact representation
// of each value.
func (b Bounds) String() string {
	vals := make([]string, len(b))
	for i, v := range b {
		vals[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(vals, ",") + "]"
}
