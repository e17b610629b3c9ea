package summary

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"ridelog/pkg/model"
)

func sampleSummary() model.RideSummary {
	return model.RideSummary{
		Title:        "Ride 20240601_081500",
		FilePath:     "/data/rides/ride_20240601_081500.gpx",
		DistanceKm:   42.1234,
		DurationText: "01:52:07",
		AvgMovingKmh: 22.537,
		VMaxKmh:      51.004,
		ElevGainM:    318,
		DateText:     "2024-06-01 08:15",
	}
}

func TestEncode_Layout(t *testing.T) {
	got := string(Encode(sampleSummary()))
	want := strings.Join([]string{
		"title=Ride 20240601_081500",
		"filePath=/data/rides/ride_20240601_081500.gpx",
		"distanceKm=42.123",
		"durationText=01:52:07",
		"avgMovingKmh=22.54",
		"vMaxKmh=51.00",
		"elevGainM=318",
		"dateText=2024-06-01 08:15",
	}, "\n") + "\n"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	in := sampleSummary()
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	opts := cmp.Options{
		cmp.FilterPath(func(p cmp.Path) bool { return p.String() == "DistanceKm" }, cmpopts.EquateApprox(0, 0.0005)),
		cmp.FilterPath(func(p cmp.Path) bool { return p.String() != "DistanceKm" }, cmpopts.EquateApprox(0, 0.005)),
	}
	if diff := cmp.Diff(in, out, opts); diff != "" {
		t.Errorf("round trip mismatch (-in +out):\n%s", diff)
	}
}

func TestEncode_NewlinesInValues(t *testing.T) {
	s := sampleSummary()
	s.Title = "Morning\nloop"
	out, err := Decode(Encode(s))
	if err != nil {
		t.Fatal(err)
	}
	if out.Title != "Morning loop" {
		t.Errorf("Title = %q", out.Title)
	}
	if out.DateText != s.DateText {
		t.Errorf("DateText = %q, want %q", out.DateText, s.DateText)
	}
}

func TestDecode_Defaults(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  model.RideSummary
	}{
		{
			name:  "OnlyDistance",
			input: "distanceKm=12.500\n",
			want:  model.RideSummary{Title: DefaultTitle, DurationText: "00:00:00", DistanceKm: 12.5},
		},
		{
			name:  "MalformedNumbers",
			input: "title=Commute\ndistanceKm=abc\nelevGainM=12.7\nvMaxKmh=\n",
			want:  model.RideSummary{Title: "Commute", DurationText: "00:00:00"},
		},
		{
			name:  "CommaDecimals",
			input: "distanceKm=3,250\navgMovingKmh=18,40\n",
			want:  model.RideSummary{Title: DefaultTitle, DurationText: "00:00:00", DistanceKm: 3.25, AvgMovingKmh: 18.4},
		},
		{
			name:  "ValueContainsEquals",
			input: "filePath=/tmp/a=b.gpx\r\ndateText=2024-01-01 10:00\r\n",
			want:  model.RideSummary{Title: DefaultTitle, DurationText: "00:00:00", FilePath: "/tmp/a=b.gpx", DateText: "2024-01-01 10:00"},
		},
		{
			name:  "UnknownKeysIgnored",
			input: "# comment\ncolor=red\ntitle=X\n",
			want:  model.RideSummary{Title: "X", DurationText: "00:00:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_NoFields(t *testing.T) {
	for _, in := range []string{"", "\n\n", "not a record"} {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrNoFields) {
			t.Errorf("Decode(%q) error = %v, want ErrNoFields", in, err)
		}
	}
}
