package reconciler

import (
	"strconv"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// JoinMode способ сопоставления записей с занятиями
type JoinMode int

const (
	// JoinLeft возвращает каждое занятие, даже если записи нет
	JoinLeft JoinMode = iota
	// JoinInner возвращает только занятия, для которых запись есть
	JoinInner
)

func (m JoinMode) String() string {
	if m == JoinInner {
		return "inner"
	}
	return "left"
}

// Row занятие и сопоставленная с ним запись. Found == false означает отсутствие записи.
type Row[R any] struct {
	Occurrence model.Occurrence
	Record     R
	Found      bool
}

// Group занятие и все сопоставленные с ним записи
type Group[R any] struct {
	Occurrence model.Occurrence
	Records    []R
}

// OccurrenceKeyFunc ключ занятия для сопоставления
type OccurrenceKeyFunc func(model.Occurrence) string

// IDKey ключ по суррогатному ID сохранённого занятия. Все записи (отметки, файлы,
// домашние задания) сопоставляются только по нему; (lesson_id, start) служит лишь
// ограничением уникальности при материализации. У несохранённого занятия ключа нет.
func IDKey(o model.Occurrence) string {
	if !o.IsMaterialized() {
		return ""
	}
	return strconv.FormatInt(o.ID, 10)
}

func AttendanceKey(r *model.AttendanceRecord) string {
	return strconv.FormatInt(r.OccurrenceID, 10)
}

func FileKey(f *model.FileRecord) string {
	return strconv.FormatInt(f.OccurrenceID, 10)
}

func HomeworkKey(h *model.HomeworkRecord) string {
	return strconv.FormatInt(h.OccurrenceID, 10)
}

// Reconcile сопоставляет записи с занятиями по ключу. Порядок занятий сохраняется.
// При нескольких записях с одним ключом берётся последняя.
// occKey == nil означает IDKey. Занятие с пустым ключом записей не получает.
func Reconcile[R any](occs []model.Occurrence, records []R, recordKey func(R) string, occKey OccurrenceKeyFunc, mode JoinMode) []Row[R] {
	if occKey == nil {
		occKey = IDKey
	}

	byKey := make(map[string]R, len(records))
	for _, rec := range records {
		byKey[recordKey(rec)] = rec
	}

	rows := make([]Row[R], 0, len(occs))
	for _, occ := range occs {
		var (
			rec R
			ok  bool
		)
		if k := occKey(occ); k != "" {
			rec, ok = byKey[k]
		}
		if !ok && mode == JoinInner {
			continue
		}
		rows = append(rows, Row[R]{Occurrence: occ, Record: rec, Found: ok})
	}
	return rows
}

// GroupJoin левое соединение, собирающее все записи занятия в порядке их следования.
// occKey == nil означает IDKey.
func GroupJoin[R any](occs []model.Occurrence, records []R, recordKey func(R) string, occKey OccurrenceKeyFunc) []Group[R] {
	if occKey == nil {
		occKey = IDKey
	}

	byKey := make(map[string][]R, len(occs))
	for _, rec := range records {
		k := recordKey(rec)
		byKey[k] = append(byKey[k], rec)
	}

	groups := make([]Group[R], 0, len(occs))
	for _, occ := range occs {
		var recs []R
		if k := occKey(occ); k != "" {
			recs = byKey[k]
		}
		groups = append(groups, Group[R]{Occurrence: occ, Records: recs})
	}
	return groups
}
