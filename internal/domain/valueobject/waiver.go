package valueobject

import (
	"errors"
	"time"
)

// TechnicalDebtWaiver представляет явное принятие значения вне нормы (Value Object)
// Пока действует, RED/YELLOW заменяются на GREY.
type TechnicalDebtWaiver struct {
	acceptedValue float64
	explanation   string
	expiresAt     time.Time
}

// NewTechnicalDebtWaiver создает waiver. Нулевой expiresAt означает бессрочный waiver.
func NewTechnicalDebtWaiver(acceptedValue float64, explanation string, expiresAt time.Time) (*TechnicalDebtWaiver, error) {
	if explanation == "" {
		return nil, errors.New("waiver explanation cannot be empty")
	}

	return &TechnicalDebtWaiver{
		acceptedValue: acceptedValue,
		explanation:   explanation,
		expiresAt:     expiresAt,
	}, nil
}

// AcceptedValue возвращает принятое значение
func (w *TechnicalDebtWaiver) AcceptedValue() float64 {
	return w.acceptedValue
}

// Explanation возвращает обоснование
func (w *TechnicalDebtWaiver) Explanation() string {
	return w.explanation
}

// ExpiresAt возвращает дату окончания (нулевая, если бессрочный)
func (w *TechnicalDebtWaiver) ExpiresAt() time.Time {
	return w.expiresAt
}

// IsActive сообщает, действует ли waiver на дату.
// nil-waiver никогда не активен.
func (w *TechnicalDebtWaiver) IsActive(at time.Time) bool {
	if w == nil {
		return false
	}
	return w.expiresAt.IsZero() || at.Before(w.expiresAt)
}

// Covers сообщает, что принятое значение не лучше текущего:
// waiver "покрывает" значение, пока ситуация не ухудшилась сверх принятого.
func (w *TechnicalDebtWaiver) Covers(value float64, direction Direction) bool {
	if w == nil {
		return false
	}
	return direction.AtLeastAsGood(value, w.acceptedValue)
}
