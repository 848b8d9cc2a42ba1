package entity

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// StatusCounts хранит количество метрик в каждом статусе для одного снимка
type StatusCounts map[valueobject.Status]int

// Total возвращает общее количество учтенных метрик
func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func (c StatusCounts) clone() StatusCounts {
	result := make(StatusCounts, len(c))
	for k, v := range c {
		result[k] = v
	}
	return result
}

// Snapshot описывает один запуск: дату и количество статусов
type Snapshot struct {
	Date   time.Time
	Counts StatusCounts
}

// HistoryLog представляет хронологическую сжатую историю значений и статусов метрик (Aggregate Root)
//
// Хранит упорядоченный список снимков и для каждой метрики список сегментов.
// Соседние сегменты одной метрики никогда не совпадают одновременно по значению и статусу.
// Не безопасен для конкурентной записи: Append вызывается из одной горутины.
type HistoryLog struct {
	dates    []time.Time
	statuses []StatusCounts
	metrics  map[string][]HistorySegment
}

// NewHistoryLog создает пустую историю (Factory Method)
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{
		dates:    make([]time.Time, 0),
		statuses: make([]StatusCounts, 0),
		metrics:  make(map[string][]HistorySegment),
	}
}

// ReconstructHistoryLog восстанавливает историю из хранилища (для Repository)
func ReconstructHistoryLog(
	dates []time.Time,
	statuses []StatusCounts,
	metrics map[string][]HistorySegment,
) (*HistoryLog, error) {
	if len(dates) != len(statuses) {
		return nil, fmt.Errorf("history has %d dates but %d status records", len(dates), len(statuses))
	}

	log := NewHistoryLog()

	for i, date := range dates {
		date = valueobject.NormalizeHistoryDate(date)
		if i > 0 && !date.After(log.dates[i-1]) {
			return nil, fmt.Errorf("history dates are not strictly increasing at position %d", i)
		}
		log.dates = append(log.dates, date)

		counts := statuses[i].clone()
		if counts == nil {
			counts = make(StatusCounts)
		}
		log.statuses = append(log.statuses, counts)
	}

	for id, segments := range metrics {
		if id == "" {
			return nil, errors.New("history contains an empty metric id")
		}
		for i := 1; i < len(segments); i++ {
			if !segments[i].start.After(segments[i-1].end) {
				return nil, fmt.Errorf("segments of metric %s overlap at position %d", id, i)
			}
		}
		log.metrics[id] = append([]HistorySegment(nil), segments...)
	}

	return log, nil
}

// Append добавляет измерение метрики в снимок с датой date.
//
// Снимок с той же датой, что и последний, дополняется; более поздняя дата открывает новый снимок.
// Если последний сегмент метрики имеет те же значение и статус, он продлевается до date.
// При ошибке история не меняется.
func (h *HistoryLog) Append(
	date time.Time,
	metricID string,
	value valueobject.MeasuredValue,
	status valueobject.Status,
) error {
	if metricID == "" {
		return errors.New("metric id cannot be empty")
	}
	if err := status.Validate(); err != nil {
		return err
	}

	date = valueobject.NormalizeHistoryDate(date)

	last, hasDates := h.LastDate()
	if hasDates && date.Before(last) {
		return &OutOfOrderError{Date: date, Latest: last}
	}

	segments := h.metrics[metricID]
	n := len(segments)
	if n > 0 && !date.After(segments[n-1].end) {
		return &OutOfOrderError{MetricID: metricID, Date: date, Latest: segments[n-1].end}
	}

	// Проверки пройдены, дальше только мутации
	if !hasDates || date.After(last) {
		h.dates = append(h.dates, date)
		h.statuses = append(h.statuses, make(StatusCounts))
	}

	if status.IsSet() {
		h.statuses[len(h.statuses)-1][status]++
	}

	if n > 0 && segments[n-1].sameReading(value, status) {
		segments[n-1].end = date
		return nil
	}

	h.metrics[metricID] = append(segments, HistorySegment{
		start:  date,
		end:    date,
		value:  value,
		status: status,
	})

	return nil
}

// OpenSnapshot регистрирует снимок с датой date без измерений.
// Дата, равная последней, ничего не меняет; более ранняя дата: OutOfOrderError.
func (h *HistoryLog) OpenSnapshot(date time.Time) error {
	date = valueobject.NormalizeHistoryDate(date)

	last, hasDates := h.LastDate()
	if hasDates && date.Before(last) {
		return &OutOfOrderError{Date: date, Latest: last}
	}
	if !hasDates || date.After(last) {
		h.dates = append(h.dates, date)
		h.statuses = append(h.statuses, make(StatusCounts))
	}
	return nil
}

// StatusStartDate возвращает дату, с которой метрика находится в текущем статусе.
// Для метрики без истории возвращает valueobject.BeginningOfTime.
func (h *HistoryLog) StatusStartDate(metricID string) time.Time {
	segments := h.metrics[metricID]
	if len(segments) == 0 {
		return valueobject.BeginningOfTime
	}
	return segments[len(segments)-1].start
}

// RecentValues возвращает значения метрики на последних n снимках в хронологическом порядке.
//
// Сегмент, покрывающий k снимков, дает k одинаковых значений. Снимки, в которых
// метрики не было, пропускаются.
func (h *HistoryLog) RecentValues(metricID string, n int) []valueobject.MeasuredValue {
	segments := h.metrics[metricID]
	if n <= 0 || len(segments) == 0 {
		return []valueobject.MeasuredValue{}
	}

	dates := h.dates
	if len(dates) > n {
		dates = dates[len(dates)-n:]
	}

	values := make([]valueobject.MeasuredValue, 0, len(dates))
	j := len(segments) - 1
	for i := len(dates) - 1; i >= 0 && j >= 0; i-- {
		date := dates[i]
		for j >= 0 && segments[j].start.After(date) {
			j--
		}
		if j >= 0 && segments[j].Covers(date) {
			values = append(values, segments[j].value)
		}
	}

	for left, right := 0, len(values)-1; left < right; left, right = left+1, right-1 {
		values[left], values[right] = values[right], values[left]
	}

	return values
}

// Merge дописывает в конец историю other, которая целиком позже текущей.
//
// Метрики, которых нет в текущей истории, переносятся как есть. Граничные сегменты
// с одинаковыми значением и статусом склеиваются. При ошибке история не меняется.
func (h *HistoryLog) Merge(other *HistoryLog) error {
	if other == nil || other.IsEmpty() {
		return nil
	}

	if last, ok := h.LastDate(); ok {
		if first, ok := other.FirstDate(); ok && !first.After(last) {
			return &MergeOrderError{LatestDate: last, OtherFirst: first}
		}
	}

	for id, theirs := range other.metrics {
		mine := h.metrics[id]
		if len(mine) == 0 || len(theirs) == 0 {
			continue
		}
		if !theirs[0].start.After(mine[len(mine)-1].end) {
			return &MergeOrderError{LatestDate: mine[len(mine)-1].end, OtherFirst: theirs[0].start}
		}
	}

	h.dates = append(h.dates, other.dates...)
	for _, counts := range other.statuses {
		h.statuses = append(h.statuses, counts.clone())
	}

	for id, theirs := range other.metrics {
		mine := h.metrics[id]
		if len(mine) == 0 {
			h.metrics[id] = append([]HistorySegment(nil), theirs...)
			continue
		}

		rest := theirs
		if len(theirs) > 0 && mine[len(mine)-1].sameReading(theirs[0].value, theirs[0].status) {
			mine[len(mine)-1].end = theirs[0].end
			rest = theirs[1:]
		}
		h.metrics[id] = append(mine, rest...)
	}

	return nil
}

// Compact склеивает соседние сегменты с одинаковыми значением и статусом.
// Возвращает количество выполненных склеек; повторный вызов возвращает 0.
func (h *HistoryLog) Compact() int {
	merges := 0

	for id, segments := range h.metrics {
		if len(segments) < 2 {
			continue
		}

		compacted := make([]HistorySegment, 0, len(segments))
		compacted = append(compacted, segments[0])
		for _, segment := range segments[1:] {
			last := &compacted[len(compacted)-1]
			if last.sameReading(segment.value, segment.status) {
				if segment.end.After(last.end) {
					last.end = segment.end
				}
				merges++
				continue
			}
			compacted = append(compacted, segment)
		}

		h.metrics[id] = compacted
	}

	return merges
}

// Statuses возвращает снимки (дата и количество статусов) в хронологическом порядке
func (h *HistoryLog) Statuses() []Snapshot {
	result := make([]Snapshot, 0, len(h.dates))
	for i, date := range h.dates {
		result = append(result, Snapshot{Date: date, Counts: h.statuses[i].clone()})
	}
	return result
}

// LatestCounts возвращает количество статусов последнего снимка
func (h *HistoryLog) LatestCounts() StatusCounts {
	if len(h.statuses) == 0 {
		return make(StatusCounts)
	}
	return h.statuses[len(h.statuses)-1].clone()
}

// Dates возвращает копию списка дат снимков
func (h *HistoryLog) Dates() []time.Time {
	return append([]time.Time(nil), h.dates...)
}

// FirstDate возвращает дату первого снимка
func (h *HistoryLog) FirstDate() (time.Time, bool) {
	if len(h.dates) == 0 {
		return time.Time{}, false
	}
	return h.dates[0], true
}

// LastDate возвращает дату последнего снимка
func (h *HistoryLog) LastDate() (time.Time, bool) {
	if len(h.dates) == 0 {
		return time.Time{}, false
	}
	return h.dates[len(h.dates)-1], true
}

// IsEmpty сообщает, что в истории нет ни снимков, ни метрик
func (h *HistoryLog) IsEmpty() bool {
	return len(h.dates) == 0 && len(h.metrics) == 0
}

// MetricIDs возвращает отсортированный список идентификаторов метрик
func (h *HistoryLog) MetricIDs() []string {
	ids := make([]string, 0, len(h.metrics))
	for id := range h.metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Segments возвращает копию сегментов метрики
func (h *HistoryLog) Segments(metricID string) []HistorySegment {
	return append([]HistorySegment(nil), h.metrics[metricID]...)
}

// LatestSegment возвращает последний сегмент метрики
func (h *HistoryLog) LatestSegment(metricID string) (HistorySegment, bool) {
	segments := h.metrics[metricID]
	if len(segments) == 0 {
		return HistorySegment{}, false
	}
	return segments[len(segments)-1], true
}

// SegmentCount возвращает общее количество сегментов всех метрик
func (h *HistoryLog) SegmentCount() int {
	total := 0
	for _, segments := range h.metrics {
		total += len(segments)
	}
	return total
}
