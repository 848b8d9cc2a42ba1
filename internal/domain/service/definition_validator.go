package service

import (
	"errors"
	"fmt"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// DefinitionValidator проверяет согласованность определений метрик и норм (Domain Service)
// Все ошибки: ConfigurationError: запуск с такими нормами невозможен.
type DefinitionValidator struct{}

// NewDefinitionValidator создает новый DefinitionValidator
func NewDefinitionValidator() *DefinitionValidator {
	return &DefinitionValidator{}
}

// Validate выполняет полную валидацию определения метрики
func (v *DefinitionValidator) Validate(def *entity.MetricDefinition) error {
	if def == nil {
		return errors.New("metric definition cannot be nil")
	}

	if err := def.Direction().Validate(); err != nil {
		return &valueobject.ConfigurationError{Field: def.Kind() + ".direction", Reason: err.Error()}
	}

	if def.MaxAge() < 0 {
		return &valueobject.ConfigurationError{Field: def.Kind() + ".max_age", Reason: "cannot be negative"}
	}

	return v.ValidateBounds(def.Kind(), def.Direction(), def.Target(), def.LowTarget())
}

// ValidatePolicy проверяет норму, переопределенную для пары (субъект, метрика)
func (v *DefinitionValidator) ValidatePolicy(
	def *entity.MetricDefinition,
	subject string,
	policy valueobject.ThresholdPolicy,
) error {
	if policy == nil {
		return nil
	}

	field := def.IDFor(subject)

	if dynamic, ok := policy.(valueobject.DynamicTarget); ok {
		// Проверяем обе точки калибровки
		if err := v.ValidateBounds(field+"@start", def.Direction(),
			dynamic.Target(dynamic.StartDate()), dynamic.LowTarget(dynamic.StartDate())); err != nil {
			return err
		}
		return v.ValidateBounds(field+"@end", def.Direction(),
			dynamic.Target(dynamic.EndDate()), dynamic.LowTarget(dynamic.EndDate()))
	}

	return v.ValidateBounds(field, def.Direction(), policy.Target(valueobject.BeginningOfTime), policy.LowTarget(valueobject.BeginningOfTime))
}

// ValidateBounds проверяет, что target не хуже low target и проценты в пределах [0, 100]
func (v *DefinitionValidator) ValidateBounds(field string, direction valueobject.Direction, target, lowTarget float64) error {
	if !direction.AtLeastAsGood(target, lowTarget) {
		return &valueobject.ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("target %v is worse than low target %v for %s", target, lowTarget, direction),
		}
	}

	if direction.IsPercentage() {
		for _, bound := range []float64{target, lowTarget} {
			if bound < 0 || bound > 100 {
				return &valueobject.ConfigurationError{
					Field:  field,
					Reason: fmt.Sprintf("percentage bound %v is outside [0, 100]", bound),
				}
			}
		}
	}

	return nil
}

// ValidateBatch валидирует группу определений и возвращает все найденные ошибки
func (v *DefinitionValidator) ValidateBatch(defs []*entity.MetricDefinition) []error {
	var errs []error
	seen := make(map[string]bool, len(defs))

	for _, def := range defs {
		if err := v.Validate(def); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[def.Kind()] {
			errs = append(errs, &valueobject.ConfigurationError{Field: def.Kind(), Reason: "duplicate metric kind"})
		}
		seen[def.Kind()] = true
	}

	return errs
}
