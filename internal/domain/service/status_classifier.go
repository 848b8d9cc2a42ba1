package service

import (
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// ClassifyInput содержит все данные, от которых зависит статус измерения
type ClassifyInput struct {
	Value      valueobject.MeasuredValue
	Direction  valueobject.Direction
	Policy     valueobject.ThresholdPolicy
	At         time.Time
	Waiver     *valueobject.TechnicalDebtWaiver
	Stale      bool
	Perfect    float64
	HasPerfect bool
	YellowTier bool
}

// StatusClassifier присваивает измерению качественный статус (Domain Service)
// Чистая функция входных данных, без состояния.
type StatusClassifier struct{}

// NewStatusClassifier создает новый StatusClassifier
func NewStatusClassifier() *StatusClassifier {
	return &StatusClassifier{}
}

// Classify вычисляет статус.
//
// Порядок проверок: нет данных → MISSING; устаревшие данные → RED (GREY под waiver);
// PERFECT; GREEN; YELLOW (только для метрик с желтым уровнем); иначе RED.
// Действующий waiver, принятое значение которого не лучше текущего, превращает RED и YELLOW в GREY.
func (c *StatusClassifier) Classify(in ClassifyInput) valueobject.Status {
	if !in.Value.IsAvailable() {
		return valueobject.StatusMissing
	}

	waiverActive := in.Waiver.IsActive(in.At)

	if in.Stale {
		if waiverActive {
			return valueobject.StatusGrey
		}
		return valueobject.StatusRed
	}

	value := in.Value.Raw()

	if in.HasPerfect && in.Direction.AtLeastAsGood(value, in.Perfect) {
		return valueobject.StatusPerfect
	}

	var target, lowTarget float64
	if in.Policy != nil {
		target = in.Policy.Target(in.At)
		lowTarget = in.Policy.LowTarget(in.At)
	}

	if in.Direction.AtLeastAsGood(value, target) {
		return valueobject.StatusGreen
	}

	status := valueobject.StatusRed
	if in.YellowTier && in.Direction.AtLeastAsGood(value, lowTarget) {
		status = valueobject.StatusYellow
	}

	if waiverActive && in.Waiver.Covers(value, in.Direction) {
		return valueobject.StatusGrey
	}

	return status
}
