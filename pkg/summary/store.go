package summary

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ridelog/pkg/model"
)

// Ext is the extension of summary record files.
const Ext = ".json"

// ErrNoTrackPath is returned for a summary that does not name its track file.
var ErrNoTrackPath = errors.New("summary has no track path")

// Store keeps summary records in a directory, one file per ride. It assumes a
// single writing process.
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// FileName returns the record name for a track file: the track's base name with Ext.
func FileName(trackPath string) string {
	base := filepath.Base(trackPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + Ext
}

// Append writes the record for s and returns its path. An existing record for
// the same track is replaced.
func (st *Store) Append(s model.RideSummary) (string, error) {
	if strings.TrimSpace(s.FilePath) == "" {
		return "", ErrNoTrackPath
	}
	if err := os.MkdirAll(st.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}
	path := filepath.Join(st.Dir, FileName(s.FilePath))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, Encode(s), 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to commit summary: %w", err)
	}
	return path, nil
}

// LoadAll reads every record in the directory, newest first. Unreadable or
// empty records are skipped. Ordering compares DateText as strings, which is
// chronological only while every record uses the "YYYY-MM-DD HH:mm" layout.
func (st *Store) LoadAll() ([]model.RideSummary, error) {
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.RideSummary{}, nil
		}
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	out := make([]model.RideSummary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Ext {
			continue
		}
		path := filepath.Join(st.Dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable ride summary", "path", path, "error", err)
			continue
		}
		s, err := Decode(data)
		if err != nil {
			slog.Warn("Skipping invalid ride summary", "path", path, "error", err)
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DateText > out[j].DateText })
	return out, nil
}
