// Package document encodes the history log in its canonical JSON form:
// {"dates": [...], "metrics": {id: [{"end", "start", "status"?, "value"?}]}, "statuses": [{...}]}.
// Keys are sorted and the output is indented with two spaces.
package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// ContentType of encoded documents.
const ContentType = "application/json"

// Field order is alphabetical so the encoded document has sorted keys.
type historyDocument struct {
	Dates    []string                     `json:"dates"`
	Metrics  map[string][]segmentDocument `json:"metrics"`
	Statuses []map[string]int             `json:"statuses"`
}

type segmentDocument struct {
	End    string   `json:"end"`
	Start  string   `json:"start"`
	Status string   `json:"status,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// Encode serializes the log into the canonical document.
func Encode(log *entity.HistoryLog) ([]byte, error) {
	if log == nil {
		return nil, fmt.Errorf("history log cannot be nil")
	}

	doc := historyDocument{
		Dates:    make([]string, 0),
		Metrics:  make(map[string][]segmentDocument),
		Statuses: make([]map[string]int, 0),
	}

	for _, snapshot := range log.Statuses() {
		doc.Dates = append(doc.Dates, valueobject.FormatHistoryDate(snapshot.Date))
		counts := make(map[string]int, len(snapshot.Counts))
		for status, n := range snapshot.Counts {
			counts[status.String()] = n
		}
		doc.Statuses = append(doc.Statuses, counts)
	}

	for _, id := range log.MetricIDs() {
		segments := log.Segments(id)
		docs := make([]segmentDocument, 0, len(segments))
		for _, s := range segments {
			sd := segmentDocument{
				Start:  valueobject.FormatHistoryDate(s.Start()),
				End:    valueobject.FormatHistoryDate(s.End()),
				Status: s.Status().String(),
			}
			if s.Value().IsAvailable() {
				v := s.Value().Raw()
				sd.Value = &v
			}
			docs = append(docs, sd)
		}
		doc.Metrics[id] = docs
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history document: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a canonical document. Dates written by older producers
// (two-digit years, fractional seconds) are normalized.
func Decode(data []byte) (*entity.HistoryLog, error) {
	var doc historyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history document: %w", err)
	}

	dates := make([]time.Time, len(doc.Dates))
	for i, raw := range doc.Dates {
		date, err := valueobject.ParseHistoryDate(raw)
		if err != nil {
			return nil, fmt.Errorf("dates[%d]: %w", i, err)
		}
		dates[i] = date
	}

	statuses := make([]entity.StatusCounts, len(doc.Statuses))
	for i, raw := range doc.Statuses {
		counts := make(entity.StatusCounts, len(raw))
		for name, n := range raw {
			status, err := valueobject.ParseStatus(name)
			if err != nil {
				return nil, fmt.Errorf("statuses[%d]: %w", i, err)
			}
			counts[status] += n
		}
		statuses[i] = counts
	}

	metrics := make(map[string][]entity.HistorySegment, len(doc.Metrics))
	for id, docs := range doc.Metrics {
		segments := make([]entity.HistorySegment, 0, len(docs))
		for i, sd := range docs {
			segment, err := decodeSegment(sd)
			if err != nil {
				return nil, fmt.Errorf("metrics[%s][%d]: %w", id, i, err)
			}
			segments = append(segments, segment)
		}
		metrics[id] = segments
	}

	log, err := entity.ReconstructHistoryLog(dates, statuses, metrics)
	if err != nil {
		return nil, fmt.Errorf("invalid history document: %w", err)
	}
	return log, nil
}

func decodeSegment(sd segmentDocument) (entity.HistorySegment, error) {
	start, err := valueobject.ParseHistoryDate(sd.Start)
	if err != nil {
		return entity.HistorySegment{}, err
	}
	end, err := valueobject.ParseHistoryDate(sd.End)
	if err != nil {
		return entity.HistorySegment{}, err
	}

	status, err := valueobject.ParseStatus(sd.Status)
	if err != nil {
		return entity.HistorySegment{}, err
	}

	value := valueobject.Unavailable()
	if sd.Value != nil {
		value = valueobject.NewMeasuredValue(*sd.Value)
	}

	return entity.NewHistorySegment(start, end, value, status)
}
