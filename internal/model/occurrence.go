package model

import (
	"fmt"
	"time"
)

// occurrenceKeyLayout совпадает с ISO-8601 в миллисекундах, которым ключевались отметки
const occurrenceKeyLayout = "2006-01-02T15:04:05.000Z"

// Occurrence конкретное занятие урока.
// ID равен нулю, пока занятие не сохранено в lesson_occurrences.
type Occurrence struct {
	ID       int64     `json:"id"`
	LessonID int64     `json:"lesson_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// IsMaterialized возвращает true, если у занятия есть суррогатный ID
func (o Occurrence) IsMaterialized() bool {
	return o.ID != 0
}

// Key ключ уникальности (lesson_id, start). Записи по нему не сопоставляются, только по ID.
func (o Occurrence) Key() string {
	return OccurrenceKey(o.LessonID, o.Start)
}

// OccurrenceKey формирует ключ вида "<lessonID>_<start в UTC>"
func OccurrenceKey(lessonID int64, start time.Time) string {
	return fmt.Sprintf("%d_%s", lessonID, start.UTC().Format(occurrenceKeyLayout))
}
