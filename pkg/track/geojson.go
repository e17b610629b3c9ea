package track

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON returns the track as a feature collection holding one LineString,
// with start/end times and point count as properties.
func GeoJSON(t Track) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if t.Empty() {
		return fc
	}

	line := make(orb.LineString, 0, len(t.Points))
	for _, p := range t.Points {
		line = append(line, p.Point().Orb())
	}

	f := geojson.NewFeature(line)
	f.Properties["name"] = t.Name
	f.Properties["start"] = t.Start.UTC().Format(gpxTimeLayout)
	f.Properties["end"] = t.End.UTC().Format(gpxTimeLayout)
	f.Properties["points"] = len(t.Points)
	if dist := t.cumulativeMeters(); len(dist) > 0 {
		f.Properties["distance_m"] = dist[len(dist)-1]
	}
	f.BBox = geojson.NewBBox(line.Bound())
	fc.Append(f)
	return fc
}

// SaveGeoJSON writes the GeoJSON rendition of t as ride_yyyyMMdd_HHmmss.geojson.
func SaveGeoJSON(dir string, t Track) (string, error) {
	if t.Empty() {
		return "", nil
	}
	data, err := GeoJSON(t).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode geojson: %w", err)
	}
	path := filepath.Join(dir, BaseName(t.Start)+".geojson")
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
