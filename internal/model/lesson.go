package model

import (
	"time"

	"github.com/google/uuid"
)

// Lesson урок; RRule == nil означает однократное занятие
type Lesson struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	RRule     *string   `json:"rrule"`
	CreatedAt time.Time `json:"created_at"`
}

// IsRecurring возвращает true, если у урока есть правило повторения
func (l *Lesson) IsRecurring() bool {
	return l.RRule != nil && *l.RRule != ""
}

// RRuleText возвращает правило повторения или пустую строку
func (l *Lesson) RRuleText() string {
	if l.RRule == nil {
		return ""
	}
	return *l.RRule
}

// LessonFilter ограничивает выборку уроков.
// Если Scoped == false, возвращаются все уроки; иначе только те,
// на которые записан хотя бы один из EnrolledUserIDs.
type LessonFilter struct {
	Scoped          bool
	EnrolledUserIDs []uuid.UUID
}
