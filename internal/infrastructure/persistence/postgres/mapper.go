package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// SnapshotDBModel представляет снимок истории в БД
type SnapshotDBModel struct {
	Position     int
	SnapshotDate time.Time
	StatusCounts []byte // JSON
}

// SegmentDBModel представляет сегмент истории метрики в БД
type SegmentDBModel struct {
	MetricID  string
	Position  int
	StartDate time.Time
	EndDate   time.Time
	Value     sql.NullFloat64
	Status    sql.NullString
}

// ToSnapshotDBModel конвертирует снимок в DB Model
func ToSnapshotDBModel(position int, snapshot entity.Snapshot) (*SnapshotDBModel, error) {
	counts := make(map[string]int, len(snapshot.Counts))
	for status, n := range snapshot.Counts {
		counts[status.String()] = n
	}

	countsBytes, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}

	return &SnapshotDBModel{
		Position:     position,
		SnapshotDate: snapshot.Date,
		StatusCounts: countsBytes,
	}, nil
}

// ToSegmentDBModel конвертирует сегмент в DB Model
func ToSegmentDBModel(metricID string, position int, segment entity.HistorySegment) *SegmentDBModel {
	model := &SegmentDBModel{
		MetricID:  metricID,
		Position:  position,
		StartDate: segment.Start(),
		EndDate:   segment.End(),
	}
	if segment.Value().IsAvailable() {
		model.Value = sql.NullFloat64{Float64: segment.Value().Raw(), Valid: true}
	}
	if segment.Status().IsSet() {
		model.Status = sql.NullString{String: segment.Status().String(), Valid: true}
	}
	return model
}

// ToStatusCounts восстанавливает количество статусов снимка
func ToStatusCounts(model *SnapshotDBModel) (entity.StatusCounts, error) {
	var raw map[string]int
	if len(model.StatusCounts) > 0 {
		if err := json.Unmarshal(model.StatusCounts, &raw); err != nil {
			return nil, err
		}
	}

	counts := make(entity.StatusCounts, len(raw))
	for name, n := range raw {
		status, err := valueobject.ParseStatus(name)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", model.Position, err)
		}
		counts[status] += n
	}
	return counts, nil
}

// ToSegment восстанавливает сегмент истории
func ToSegment(model *SegmentDBModel) (entity.HistorySegment, error) {
	value := valueobject.Unavailable()
	if model.Value.Valid {
		value = valueobject.NewMeasuredValue(model.Value.Float64)
	}

	status := valueobject.StatusNone
	if model.Status.Valid {
		parsed, err := valueobject.ParseStatus(model.Status.String)
		if err != nil {
			return entity.HistorySegment{}, err
		}
		status = parsed
	}

	return entity.NewHistorySegment(model.StartDate, model.EndDate, value, status)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// ScanSnapshotRow сканирует строку БД в SnapshotDBModel
func ScanSnapshotRow(row scanner) (*SnapshotDBModel, error) {
	var model SnapshotDBModel
	var counts sql.NullString

	if err := row.Scan(&model.Position, &model.SnapshotDate, &counts); err != nil {
		return nil, err
	}

	if counts.Valid {
		model.StatusCounts = []byte(counts.String)
	}
	return &model, nil
}

// ScanSegmentRow сканирует строку БД в SegmentDBModel
func ScanSegmentRow(row scanner) (*SegmentDBModel, error) {
	var model SegmentDBModel

	err := row.Scan(
		&model.MetricID,
		&model.Position,
		&model.StartDate,
		&model.EndDate,
		&model.Value,
		&model.Status,
	)
	if err != nil {
		return nil, err
	}
	return &model, nil
}
