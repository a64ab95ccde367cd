package timezone

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		tz     string
		want   time.Time
		offset int
	}{
		{
			name:   "rfc3339 with offset",
			value:  "2026-11-02T06:10:00+05:30",
			want:   time.Date(2026, 11, 2, 0, 40, 0, 0, time.UTC),
			offset: 19800,
		},
		{
			name:   "offset without colon",
			value:  "2026-11-02T06:10:00+0530",
			want:   time.Date(2026, 11, 2, 0, 40, 0, 0, time.UTC),
			offset: 19800,
		},
		{
			name:   "zulu",
			value:  "2026-11-02T06:10:00Z",
			want:   time.Date(2026, 11, 2, 6, 10, 0, 0, time.UTC),
			offset: 0,
		},
		{
			name:   "local time in fixed zone",
			value:  "2026-11-02 06:10",
			tz:     "UTC+5:30",
			want:   time.Date(2026, 11, 2, 0, 40, 0, 0, time.UTC),
			offset: 19800,
		},
		{
			name:   "local time without zone is utc",
			value:  "2026-11-02T06:10:00",
			want:   time.Date(2026, 11, 2, 6, 10, 0, 0, time.UTC),
			offset: 0,
		},
		{
			name:   "unix seconds",
			value:  "1793599800",
			want:   time.Unix(1793599800, 0),
			offset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.value, tt.tz)
			if err != nil {
				t.Fatalf("ParseTimestamp: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if _, off := got.Zone(); off != tt.offset {
				t.Errorf("offset = %d, want %d", off, tt.offset)
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	if _, err := ParseTimestamp("next tuesday", ""); err == nil {
		t.Error("expected error")
	}
}

func TestLocationByName(t *testing.T) {
	tests := []struct {
		name   string
		offset int
	}{
		{"", 0},
		{"UTC", 0},
		{"+07:00", 7 * 3600},
		{"UTC-3", -3 * 3600},
		{"GMT+0545", 5*3600 + 45*60},
		{"Not/AZone", 0},
	}
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		_, off := ref.In(LocationByName(tt.name)).Zone()
		if off != tt.offset {
			t.Errorf("LocationByName(%q) offset = %d, want %d", tt.name, off, tt.offset)
		}
	}
}

func TestMinuteOfDay(t *testing.T) {
	if got := MinuteOfDay(time.Date(2026, 1, 1, 13, 45, 0, 0, time.UTC)); got != 825 {
		t.Errorf("MinuteOfDay = %d, want 825", got)
	}
}
