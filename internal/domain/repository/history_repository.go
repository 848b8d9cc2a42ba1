package repository

import (
	"context"
	"errors"

	"github.com/dreschagin/quality-history/internal/domain/entity"
)

// ErrHistoryNotFound возвращается, если история еще ни разу не сохранялась
var ErrHistoryNotFound = errors.New("history not found")

// HistoryRepository определяет интерфейс для работы с хранилищем истории (Port)
// Реализации: файл, S3, PostgreSQL.
type HistoryRepository interface {
	// Load загружает историю целиком. Если истории нет, возвращает ErrHistoryNotFound.
	Load(ctx context.Context) (*entity.HistoryLog, error)

	// Save сохраняет историю целиком (все или ничего)
	Save(ctx context.Context, log *entity.HistoryLog) error

	// Location возвращает описание места хранения для логов
	Location() string
}
