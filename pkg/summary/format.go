// Package summary persists one synopsis record per finished ride and lists them.
//
// A record is plain text, one key=value pair per line. The file extension is
// .json for compatibility with existing ride directories even though the content
// is not JSON.
package summary

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ridelog/pkg/model"
)

// Record keys, in the order they are written.
const (
	KeyTitle        = "title"
	KeyFilePath     = "filePath"
	KeyDistanceKm   = "distanceKm"
	KeyDurationText = "durationText"
	KeyAvgMovingKmh = "avgMovingKmh"
	KeyVMaxKmh      = "vMaxKmh"
	KeyElevGainM    = "elevGainM"
	KeyDateText     = "dateText"
)

// DefaultTitle is used when a record has no title.
const DefaultTitle = "Ride"

// ErrNoFields is returned by Decode when the input has no key=value line at all.
var ErrNoFields = errors.New("summary: no key=value fields")

// Encode renders s as key=value lines. Distance has 3 decimals, speeds 2.
func Encode(s model.RideSummary) []byte {
	var b strings.Builder
	line := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	line(KeyTitle, clean(s.Title))
	line(KeyFilePath, clean(s.FilePath))
	line(KeyDistanceKm, strconv.FormatFloat(s.DistanceKm, 'f', 3, 64))
	line(KeyDurationText, clean(s.DurationText))
	line(KeyAvgMovingKmh, strconv.FormatFloat(s.AvgMovingKmh, 'f', 2, 64))
	line(KeyVMaxKmh, strconv.FormatFloat(s.VMaxKmh, 'f', 2, 64))
	line(KeyElevGainM, strconv.Itoa(s.ElevGainM))
	line(KeyDateText, clean(s.DateText))
	return []byte(b.String())
}

// clean keeps a value on one line.
func clean(v string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(v)
}

// Decode parses a record. Missing or malformed fields fall back to their
// defaults; only input with no key=value line at all is rejected.
func Decode(data []byte) (model.RideSummary, error) {
	fields := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSuffix(sc.Text(), "\r"), "=")
		if !ok {
			continue
		}
		fields[k] = v
	}
	if err := sc.Err(); err != nil {
		return model.RideSummary{}, fmt.Errorf("failed to scan summary: %w", err)
	}
	if len(fields) == 0 {
		return model.RideSummary{}, ErrNoFields
	}

	s := model.RideSummary{
		Title:        DefaultTitle,
		DurationText: "00:00:00",
	}
	if v, ok := fields[KeyTitle]; ok {
		s.Title = v
	}
	if v, ok := fields[KeyDurationText]; ok {
		s.DurationText = v
	}
	s.FilePath = fields[KeyFilePath]
	s.DateText = fields[KeyDateText]
	s.DistanceKm = parseFloat(fields[KeyDistanceKm])
	s.AvgMovingKmh = parseFloat(fields[KeyAvgMovingKmh])
	s.VMaxKmh = parseFloat(fields[KeyVMaxKmh])
	s.ElevGainM = parseInt(fields[KeyElevGainM])
	return s, nil
}

func parseFloat(v string) float64 {
	// records written under a comma-decimal locale
	f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(v), ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
