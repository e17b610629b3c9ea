package track

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/tormoder/fit"
)

// WriteFIT encodes t as a FIT activity file: timer start/stop events around one
// record per point carrying position, altitude, speed and cumulative distance.
// An empty track writes nothing.
func WriteFIT(w io.Writer, t Track) error {
	if t.Empty() {
		return nil
	}
	h := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, h)
	if err != nil {
		return fmt.Errorf("failed to create fit file: %w", err)
	}
	file.FileId.TimeCreated = t.Start
	file.FileId.Manufacturer = fit.ManufacturerDevelopment

	act, err := file.Activity()
	if err != nil {
		return fmt.Errorf("failed to get fit activity: %w", err)
	}

	start := fit.NewEventMsg()
	start.Timestamp = t.Start
	start.Event = fit.EventTimer
	start.EventType = fit.EventTypeStart
	act.Events = append(act.Events, start)

	dist := t.cumulativeMeters()
	for i, p := range t.Points {
		rec := fit.NewRecordMsg()
		rec.Timestamp = p.Time()
		rec.PositionLat = fit.NewLatitudeDegrees(p.Lat)
		rec.PositionLong = fit.NewLongitudeDegrees(p.Lon)
		rec.Altitude = fitAltitude(p.AltitudeM)
		rec.Speed = fitSpeed(p.SpeedKmh)
		rec.Distance = uint32(math.Round(dist[i] * 100))
		act.Records = append(act.Records, rec)
	}

	stop := fit.NewEventMsg()
	stop.Timestamp = t.End
	stop.Event = fit.EventTimer
	stop.EventType = fit.EventTypeStopAll
	act.Events = append(act.Events, stop)

	if err := fit.Encode(w, file, binary.LittleEndian); err != nil {
		return fmt.Errorf("failed to encode fit: %w", err)
	}
	return nil
}

// SaveFIT writes t next to the GPX file as ride_yyyyMMdd_HHmmss.fit.
func SaveFIT(dir string, t Track) (string, error) {
	if t.Empty() {
		return "", nil
	}
	path := filepath.Join(dir, BaseName(t.Start)+".fit")
	return writeFile(path, func(w io.Writer) error { return WriteFIT(w, t) })
}

// fitAltitude applies the FIT altitude encoding: scale 5, offset 500 m.
func fitAltitude(m float64) uint16 {
	v := math.Round((m + 500) * 5)
	return uint16(math.Max(0, math.Min(v, math.MaxUint16-1)))
}

// fitSpeed converts km/h to the FIT speed encoding (mm/s).
func fitSpeed(kmh float64) uint16 {
	v := math.Round(kmh / 3.6 * 1000)
	return uint16(math.Max(0, math.Min(v, math.MaxUint16-1)))
}
