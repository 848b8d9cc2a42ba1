package valueobject

import (
	"testing"
	"time"
)

func TestParseHistoryDate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"canonical", "2013-02-28 17:16:46", time.Date(2013, 2, 28, 17, 16, 46, 0, time.UTC), false},
		{"two digit year", "13-02-28 17:16:46", time.Date(2013, 2, 28, 17, 16, 46, 0, time.UTC), false},
		{"fractional seconds", "2013-02-27 15:45:32.123456", time.Date(2013, 2, 27, 15, 45, 32, 0, time.UTC), false},
		{"both", "13-02-27 15:45:32.5", time.Date(2013, 2, 27, 15, 45, 32, 0, time.UTC), false},
		{"surrounding spaces", "  2020-01-10 00:00:00 ", time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHistoryDate(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHistoryDate(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseHistoryDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatHistoryDate_NormalizesToUTCSeconds(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	at := time.Date(2020, 1, 10, 13, 5, 7, 999_000_000, zone)

	if got := FormatHistoryDate(at); got != "2020-01-10 12:05:07" {
		t.Errorf("FormatHistoryDate() = %q", got)
	}
}

func TestMeasuredValue_Equals(t *testing.T) {
	tests := []struct {
		name string
		a, b MeasuredValue
		want bool
	}{
		{"same value", NewMeasuredValue(38), NewMeasuredValue(38), true},
		{"different value", NewMeasuredValue(38), NewMeasuredValue(39), false},
		{"both unavailable", Unavailable(), Unavailable(), true},
		{"unavailable vs zero", Unavailable(), NewMeasuredValue(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equals(tt.b); got != tt.want {
				t.Errorf("Equals() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"perfect", "green", "YELLOW", "red", "grey", "missing", "missing_source"} {
		if _, err := ParseStatus(raw); err != nil {
			t.Errorf("ParseStatus(%q) error = %v", raw, err)
		}
	}

	if _, err := ParseStatus("purple"); err == nil {
		t.Error("expected error for unknown status")
	}
}
