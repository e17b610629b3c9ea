package track

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const gpxTimeLayout = "2006-01-02T15:04:05.999Z"

type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Trk     gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name string     `xml:"name,omitempty"`
	Seg  gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Ele  string `xml:"ele"`
	Time string `xml:"time"`
}

// WriteGPX encodes t as a GPX 1.1 document with one track and one segment.
// An empty track writes nothing.
func WriteGPX(w io.Writer, t Track) error {
	if t.Empty() {
		return nil
	}
	doc := gpxFile{
		Version: "1.1",
		Creator: "ridelog",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Trk:     gpxTrack{Name: t.Name},
	}
	doc.Trk.Seg.Points = make([]gpxPoint, len(t.Points))
	for i, p := range t.Points {
		doc.Trk.Seg.Points[i] = gpxPoint{
			Lat:  strconv.FormatFloat(p.Lat, 'f', -1, 64),
			Lon:  strconv.FormatFloat(p.Lon, 'f', -1, 64),
			Ele:  strconv.FormatFloat(p.AltitudeM, 'f', 1, 64),
			Time: time.UnixMilli(p.TimestampMs).UTC().Format(gpxTimeLayout),
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode gpx: %w", err)
	}
	return enc.Close()
}

// SaveGPX writes t to dir as ride_yyyyMMdd_HHmmss.gpx and returns the path.
// An empty track writes nothing and returns "".
func SaveGPX(dir string, t Track) (string, error) {
	if t.Empty() {
		return "", nil
	}
	name := BaseName(t.Start) + ".gpx"
	if t.Name == "" {
		t.Name = name
	}
	return writeFile(filepath.Join(dir, name), func(w io.Writer) error { return WriteGPX(w, t) })
}

// writeFile creates path (and its directory) and streams content into it.
func writeFile(path string, content func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create track directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	bw := bufio.NewWriter(f)
	if err := content(bw); err != nil {
		f.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	return path, nil
}
