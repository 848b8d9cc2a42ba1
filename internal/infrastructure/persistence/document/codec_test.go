package document

import (
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

func TestEncode_CanonicalLayout(t *testing.T) {
	log := entity.NewHistoryLog()
	day1 := time.Date(2013, 2, 28, 17, 16, 46, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	appends := []struct {
		date   time.Time
		id     string
		value  valueobject.MeasuredValue
		status valueobject.Status
	}{
		{day1, "OpenBugsFoo", valueobject.NewMeasuredValue(38), valueobject.StatusGreen},
		{day1, "TotalLOC", valueobject.NewMeasuredValue(1000.5), valueobject.StatusNone},
		{day2, "OpenBugsFoo", valueobject.NewMeasuredValue(38), valueobject.StatusGreen},
		{day2, "TotalLOC", valueobject.Unavailable(), valueobject.StatusMissing},
	}
	for _, a := range appends {
		if err := log.Append(a.date, a.id, a.value, a.status); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	data, err := Encode(log)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{
  "dates": [
    "2013-02-28 17:16:46",
    "2013-03-01 17:16:46"
  ],
  "metrics": {
    "OpenBugsFoo": [
      {
        "end": "2013-03-01 17:16:46",
        "start": "2013-02-28 17:16:46",
        "status": "green",
        "value": 38
      }
    ],
    "TotalLOC": [
      {
        "end": "2013-02-28 17:16:46",
        "start": "2013-02-28 17:16:46",
        "value": 1000.5
      },
      {
        "end": "2013-03-01 17:16:46",
        "start": "2013-03-01 17:16:46",
        "status": "missing"
      }
    ]
  },
  "statuses": [
    {
      "green": 1
    },
    {
      "green": 1,
      "missing": 1
    }
  ]
}
`
	if string(data) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", data, want)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.SegmentCount() != 3 || len(decoded.Dates()) != 2 {
		t.Errorf("decoded log differs: %d segments, %d dates", decoded.SegmentCount(), len(decoded.Dates()))
	}
	again, _ := Encode(decoded)
	if string(again) != want {
		t.Error("re-encoding a decoded document must be stable")
	}
}

func TestDecode_NormalizesLegacyDates(t *testing.T) {
	data := `{"dates": ["13-02-28 17:16:46.123"], "statuses": [{}],
		"metrics": {"A": [{"start": "13-02-28 17:16:46.123", "end": "2013-02-28 17:16:46"}]}}`

	log, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := time.Date(2013, 2, 28, 17, 16, 46, 0, time.UTC)
	if last, _ := log.LastDate(); !last.Equal(want) {
		t.Errorf("LastDate() = %v, want %v", last, want)
	}
	segment, _ := log.LatestSegment("A")
	if segment.Value().IsAvailable() || segment.Status().IsSet() {
		t.Errorf("segment without value and status expected, got %v %q", segment.Value(), segment.Status())
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"bad date", `{"dates": ["yesterday"], "statuses": [{}], "metrics": {}}`},
		{"unknown status", `{"dates": [], "statuses": [], "metrics": {"A": [{"start": "2013-02-28 00:00:00", "end": "2013-02-28 00:00:00", "status": "purple"}]}}`},
		{"parallel lists differ", `{"dates": ["2013-02-28 00:00:00"], "statuses": [], "metrics": {}}`},
		{"segment ends before start", `{"dates": [], "statuses": [], "metrics": {"A": [{"start": "2013-02-28 00:00:00", "end": "2013-02-27 00:00:00"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncode_EmptyLog(t *testing.T) {
	data, err := Encode(entity.NewHistoryLog())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(string(data), `"dates": []`) || !strings.Contains(string(data), `"metrics": {}`) {
		t.Errorf("empty log must encode empty collections, got %s", data)
	}
}
