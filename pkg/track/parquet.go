package track

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type sampleRow struct {
	TSUTCISO    string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TimestampMs int64   `parquet:"name=timestamp_ms, type=INT64"`
	ElapsedS    float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	Lat         float64 `parquet:"name=lat, type=DOUBLE"`
	Lon         float64 `parquet:"name=lon, type=DOUBLE"`
	AltitudeM   float64 `parquet:"name=altitude_m, type=DOUBLE"`
	SpeedKmh    float64 `parquet:"name=speed_kmh, type=DOUBLE"`
	DistanceM   float64 `parquet:"name=distance_m, type=DOUBLE"`
}

func (t Track) rows() []sampleRow {
	dist := t.cumulativeMeters()
	rows := make([]sampleRow, len(t.Points))
	for i, p := range t.Points {
		ts := p.Time()
		rows[i] = sampleRow{
			TSUTCISO:    ts.UTC().Format(gpxTimeLayout),
			TimestampMs: p.TimestampMs,
			ElapsedS:    ts.Sub(t.Start).Seconds(),
			Lat:         p.Lat,
			Lon:         p.Lon,
			AltitudeM:   p.AltitudeM,
			SpeedKmh:    p.SpeedKmh,
			DistanceM:   dist[i],
		}
	}
	return rows
}

// SaveParquet archives every sample of t as ride_yyyyMMdd_HHmmss.parquet.
func SaveParquet(dir string, t Track) (string, error) {
	if t.Empty() {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create track directory: %w", err)
	}
	path := filepath.Join(dir, BaseName(t.Start)+".parquet")

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return "", fmt.Errorf("failed to create parquet file: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(sampleRow), 4)
	if err != nil {
		_ = fw.Close()
		return "", fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range t.rows() {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return "", fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return "", fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return "", err
	}
	return path, nil
}
