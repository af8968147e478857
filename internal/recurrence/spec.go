package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
)

// Frequency период повторения урока
type Frequency int

const (
	FrequencyNone Frequency = iota
	FrequencyDaily
	FrequencyWeekly
	FrequencyMonthly
	FrequencyYearly
)

var frequencyNames = map[Frequency]string{
	FrequencyNone:    "NONE",
	FrequencyDaily:   "DAILY",
	FrequencyWeekly:  "WEEKLY",
	FrequencyMonthly: "MONTHLY",
	FrequencyYearly:  "YEARLY",
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// ParseFrequency разбирает название частоты; пустая строка означает NONE
func ParseFrequency(s string) (Frequency, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return FrequencyNone, nil
	}
	for f, n := range frequencyNames {
		if n == name {
			return f, nil
		}
	}
	return FrequencyNone, apperrors.InvalidRecurrence("parse frequency", fmt.Errorf("unknown frequency %q", s))
}

// Spec описание повторения урока.
// Длительность каждого занятия равна AnchorEnd - AnchorStart.
type Spec struct {
	AnchorStart time.Time
	AnchorEnd   time.Time
	Frequency   Frequency
	Interval    int        // 0 трактуется как 1; Parse всегда возвращает Step()
	Until       *time.Time // включительно; nil - без ограничения
}

// Duration длительность одного занятия
func (s Spec) Duration() time.Duration {
	return s.AnchorEnd.Sub(s.AnchorStart)
}

// Step шаг повторения с учётом значения по умолчанию
func (s Spec) Step() int {
	if s.Interval <= 0 {
		return 1
	}
	return s.Interval
}

// Validate проверяет инварианты описания
func (s Spec) Validate() error {
	const op = "validate recurrence"

	if s.AnchorStart.IsZero() {
		return apperrors.InvalidRecurrence(op, fmt.Errorf("anchor start is required"))
	}
	if s.AnchorEnd.Before(s.AnchorStart) {
		return apperrors.InvalidRecurrence(op, fmt.Errorf("anchor end %s is before anchor start %s",
			s.AnchorEnd.Format(time.RFC3339), s.AnchorStart.Format(time.RFC3339)))
	}
	if s.Interval < 0 {
		return apperrors.InvalidRecurrence(op, fmt.Errorf("interval must be positive, got %d", s.Interval))
	}
	if _, ok := frequencyNames[s.Frequency]; !ok {
		return apperrors.InvalidRecurrence(op, fmt.Errorf("unknown frequency %d", int(s.Frequency)))
	}

	if s.Frequency == FrequencyNone {
		if s.Until != nil {
			return apperrors.InvalidRecurrence(op, fmt.Errorf("until requires a frequency"))
		}
		if s.Interval > 1 {
			return apperrors.InvalidRecurrence(op, fmt.Errorf("interval requires a frequency"))
		}
		return nil
	}

	if s.Until != nil && UntilBound(*s.Until, s.AnchorStart.Location()).Before(s.AnchorStart) {
		return apperrors.InvalidRecurrence(op, fmt.Errorf("until %s is before anchor start %s",
			s.Until.Format(time.RFC3339), s.AnchorStart.Format(time.RFC3339)))
	}

	return nil
}

// UntilBound последний допустимый момент начала занятия для UNTIL в таймзоне loc.
// UNTIL ровно в полночь UTC (так сохраняется дата без времени, в том числе UNTIL=20250630)
// или ровно в полночь loc считается датой и покрывает весь этот календарный день в loc.
// Любое другое значение - точный момент.
func UntilBound(until time.Time, loc *time.Location) time.Time {
	until = until.Truncate(time.Second)

	if u := until.UTC(); isMidnight(u) {
		return endOfDate(u.Year(), u.Month(), u.Day(), loc)
	}
	if l := until.In(loc); isMidnight(l) {
		return endOfDate(l.Year(), l.Month(), l.Day(), loc)
	}
	return until.In(loc)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func endOfDate(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

// Occurrence начало и конец одного вычисленного занятия
type Occurrence struct {
	Start time.Time
	End   time.Time
}
