package reconciler

import (
	"cmp"
	"slices"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/recurrence"
)

type SortOrder int

const (
	// Ascending ближайшие первыми, для предстоящих занятий
	Ascending SortOrder = iota
	// Descending последние первыми, для истории
	Descending
)

// Options выборка из списка занятий: фильтр по будням, сортировка, срез.
// Срез всегда применяется после фильтра.
type Options struct {
	WeekdaysOnly bool
	Order        SortOrder
	Limit        int // 0 - без ограничения
}

// Select фильтрует, сортирует и обрезает список занятий
func (r *Reconciler) Select(occs []model.Occurrence, opts Options) []model.Occurrence {
	return SelectBy(r.expander, occs, func(o model.Occurrence) time.Time { return o.Start }, opts)
}

// SelectRows то же, что Select, для результата Reconcile
func SelectRows[R any](r *Reconciler, rows []Row[R], opts Options) []Row[R] {
	return SelectBy(r.expander, rows, func(row Row[R]) time.Time { return row.Occurrence.Start }, opts)
}

// SelectBy фильтр по будням в таймзоне e, затем стабильная сортировка по началу и срез.
// Исходный срез не изменяется.
func SelectBy[T any](e *recurrence.Expander, items []T, startOf func(T) time.Time, opts Options) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if opts.WeekdaysOnly && !e.IsWeekday(startOf(item)) {
			continue
		}
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b T) int {
		c := startOf(a).Compare(startOf(b))
		if opts.Order == Descending {
			return -c
		}
		return c
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// SortOccurrences сортирует занятия по началу, при равенстве по уроку
func SortOccurrences(occs []model.Occurrence, order SortOrder) {
	slices.SortStableFunc(occs, func(a, b model.Occurrence) int {
		c := a.Start.Compare(b.Start)
		if c == 0 {
			c = cmp.Compare(a.LessonID, b.LessonID)
		}
		if order == Descending {
			return -c
		}
		return c
	})
}
