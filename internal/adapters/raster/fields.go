package raster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Fields indexes field polygons by site and assignment. It is read-only
// once built and safe for concurrent use.
type Fields struct {
	byKey map[fieldKey][]orb.Polygon
	count int
}

type fieldKey struct {
	name         string
	assignmentID string
}

// LoadFields reads a GeoJSON FeatureCollection whose features carry
// "name" and "assignment_id" properties.
func LoadFields(path string) (*Fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: expected at %s", ErrFieldsNotFound, path)
		}
		return nil, fmt.Errorf("read fields %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFieldsInvalid, path, err)
	}
	return NewFields(fc)
}

// NewFields indexes the polygonal features of fc. Point and line features
// are ignored.
func NewFields(fc *geojson.FeatureCollection) (*Fields, error) {
	f := &Fields{byKey: make(map[fieldKey][]orb.Polygon)}
	if fc == nil {
		return f, nil
	}
	for i, feat := range fc.Features {
		if feat == nil || feat.Geometry == nil {
			continue
		}
		name := propString(feat.Properties, "name")
		if name == "" {
			return nil, fmt.Errorf("%w: feature %d has no name", ErrFieldsInvalid, i)
		}
		key := fieldKey{name: name, assignmentID: propString(feat.Properties, "assignment_id")}

		switch g := feat.Geometry.(type) {
		case orb.Polygon:
			f.add(key, g)
		case orb.MultiPolygon:
			for _, p := range g {
				f.add(key, p)
			}
		}
	}
	return f, nil
}

func (f *Fields) add(key fieldKey, p orb.Polygon) {
	if len(p) == 0 || len(p[0]) < 3 {
		return
	}
	f.byKey[key] = append(f.byKey[key], p)
	f.count++
}

// Lookup returns the polygons mapped for one assignment of a site.
func (f *Fields) Lookup(name, assignmentID string) []orb.Polygon {
	if f == nil {
		return nil
	}
	return f.byKey[fieldKey{name: name, assignmentID: assignmentID}]
}

// Len returns the number of indexed polygons.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return f.count
}

// propString renders a property as a string; numeric ids become their
// shortest decimal form.
func propString(p geojson.Properties, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
