package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS history_snapshots (
	position      INTEGER PRIMARY KEY,
	snapshot_date TIMESTAMP NOT NULL UNIQUE,
	status_counts JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS history_segments (
	metric_id  TEXT NOT NULL,
	position   INTEGER NOT NULL,
	start_date TIMESTAMP NOT NULL,
	end_date   TIMESTAMP NOT NULL,
	value      DOUBLE PRECISION,
	status     TEXT,
	PRIMARY KEY (metric_id, position)
);
`

// PostgresHistoryRepository реализует repository.HistoryRepository для PostgreSQL.
// История хранится двумя таблицами и перезаписывается целиком в одной транзакции.
type PostgresHistoryRepository struct {
	db *sql.DB
}

// NewPostgresHistoryRepository создает новый PostgreSQL repository
func NewPostgresHistoryRepository(db *sql.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{
		db: db,
	}
}

// EnsureSchema создает таблицы истории, если их нет
func (r *PostgresHistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Load загружает историю. Пустые таблицы означают, что истории нет.
func (r *PostgresHistoryRepository) Load(ctx context.Context) (*entity.HistoryLog, error) {
	dates, statuses, err := r.loadSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := r.loadSegments(ctx)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 && len(metrics) == 0 {
		return nil, repository.ErrHistoryNotFound
	}

	log, err := entity.ReconstructHistoryLog(dates, statuses, metrics)
	if err != nil {
		return nil, fmt.Errorf("invalid history in database: %w", err)
	}
	return log, nil
}

func (r *PostgresHistoryRepository) loadSnapshots(ctx context.Context) ([]time.Time, []entity.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, snapshot_date, status_counts
		FROM history_snapshots
		ORDER BY position
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	var statuses []entity.StatusCounts
	for rows.Next() {
		model, err := ScanSnapshotRow(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		counts, err := ToStatusCounts(model)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to convert snapshot: %w", err)
		}
		dates = append(dates, model.SnapshotDate)
		statuses = append(statuses, counts)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return dates, statuses, nil
}

func (r *PostgresHistoryRepository) loadSegments(ctx context.Context) (map[string][]entity.HistorySegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT metric_id, position, start_date, end_date, value, status
		FROM history_segments
		ORDER BY metric_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string][]entity.HistorySegment)
	for rows.Next() {
		model, err := ScanSegmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segment, err := ToSegment(model)
		if err != nil {
			return nil, fmt.Errorf("failed to convert segment %s/%d: %w", model.MetricID, model.Position, err)
		}
		metrics[model.MetricID] = append(metrics[model.MetricID], segment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return metrics, nil
}

// Save перезаписывает историю одной транзакцией
func (r *PostgresHistoryRepository) Save(ctx context.Context, log *entity.HistoryLog) error {
	if log == nil {
		return fmt.Errorf("history log cannot be nil")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"history_snapshots", "history_segments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertSnapshots(ctx, tx, log); err != nil {
		return err
	}
	if err := insertSegments(ctx, tx, log); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertSnapshots(ctx context.Context, tx *sql.Tx, log *entity.HistoryLog) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_snapshots (position, snapshot_date, status_counts)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, snapshot := range log.Statuses() {
		model, err := ToSnapshotDBModel(i, snapshot)
		if err != nil {
			return fmt.Errorf("failed to convert snapshot to DB model: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, model.Position, model.SnapshotDate, model.StatusCounts); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}
	return nil
}

func insertSegments(ctx context.Context, tx *sql.Tx, log *entity.HistoryLog) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_segments (metric_id, position, start_date, end_date, value, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range log.MetricIDs() {
		for i, segment := range log.Segments(id) {
			model := ToSegmentDBModel(id, i, segment)
			_, err := stmt.ExecContext(ctx,
				model.MetricID,
				model.Position,
				model.StartDate,
				model.EndDate,
				model.Value,
				model.Status,
			)
			if err != nil {
				return fmt.Errorf("failed to insert segment: %w", err)
			}
		}
	}
	return nil
}

// Location возвращает описание хранилища
func (r *PostgresHistoryRepository) Location() string {
	return "postgres://history_snapshots"
}
