package entity

import (
	"fmt"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// OutOfOrderError возвращается при попытке добавить в историю запись не по порядку
type OutOfOrderError struct {
	MetricID string
	Date     time.Time
	Latest   time.Time
}

func (e *OutOfOrderError) Error() string {
	if e.MetricID == "" {
		return fmt.Sprintf("history is append-only: snapshot date %s is not after latest snapshot %s",
			valueobject.FormatHistoryDate(e.Date), valueobject.FormatHistoryDate(e.Latest))
	}
	return fmt.Sprintf("history is append-only: date %s for metric %s is not after its latest date %s",
		valueobject.FormatHistoryDate(e.Date), e.MetricID, valueobject.FormatHistoryDate(e.Latest))
}

// MergeOrderError возвращается, если объединяемые истории пересекаются или идут не по порядку
type MergeOrderError struct {
	LatestDate time.Time
	OtherFirst time.Time
}

func (e *MergeOrderError) Error() string {
	return fmt.Sprintf("cannot merge history: first date %s of merged log is not after latest date %s",
		valueobject.FormatHistoryDate(e.OtherFirst), valueobject.FormatHistoryDate(e.LatestDate))
}
