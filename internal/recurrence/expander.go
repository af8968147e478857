package recurrence

import (
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/teambition/rrule-go"
)

// Expander разворачивает правила повторения в занятия.
// Все вычисления ведутся в одной таймзоне, чтобы день недели и границы дня
// совпадали с локальными для школы.
type Expander struct {
	location *time.Location
}

// NewExpander создаёт Expander для таймзоны loc; nil означает time.Local
func NewExpander(loc *time.Location) *Expander {
	if loc == nil {
		loc = time.Local
	}
	return &Expander{location: loc}
}

// Location таймзона, в которой работает Expander
func (e *Expander) Location() *time.Location {
	return e.location
}

// Expand возвращает занятия, начало которых попадает в [windowStart, windowEnd]
// (обе границы включительно), по возрастанию начала. Результат зависит только от аргументов.
func (e *Expander) Expand(spec Spec, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	loc := e.location
	anchorStart := spec.AnchorStart.In(loc).Truncate(time.Second)
	duration := spec.AnchorEnd.Truncate(time.Second).Sub(anchorStart)
	windowStart = windowStart.In(loc)
	windowEnd = windowEnd.In(loc)

	if windowEnd.Before(windowStart) {
		return []Occurrence{}, nil
	}

	if spec.Frequency == FrequencyNone {
		if anchorStart.Before(windowStart) || anchorStart.After(windowEnd) {
			return []Occurrence{}, nil
		}
		return []Occurrence{{Start: anchorStart, End: anchorStart.Add(duration)}}, nil
	}

	opt := rrule.ROption{
		Freq:     toLibFrequency[spec.Frequency],
		Dtstart:  anchorStart,
		Interval: spec.Step(),
	}
	if spec.Until != nil {
		opt.Until = UntilBound(*spec.Until, loc)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, apperrors.InvalidRecurrence("expand", err)
	}

	starts := rule.Between(windowStart, windowEnd, true)
	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc)
		occurrences = append(occurrences, Occurrence{
			Start: start,
			End:   start.Add(duration),
		})
	}

	return occurrences, nil
}

// IsWeekday проверяет, что t приходится на понедельник-пятницу в таймзоне Expander
func (e *Expander) IsWeekday(t time.Time) bool {
	switch t.In(e.location).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// StartOfDay начало дня t в таймзоне Expander
func (e *Expander) StartOfDay(t time.Time) time.Time {
	t = t.In(e.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.location)
}

// EndOfDay последняя наносекунда дня t в таймзоне Expander
func (e *Expander) EndOfDay(t time.Time) time.Time {
	return e.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
