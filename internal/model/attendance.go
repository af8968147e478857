package model

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceRecord отметка присутствия ученика на занятии.
// Занятие определяется только OccurrenceID; Date всегда равна его началу и нужна для фильтров по времени.
type AttendanceRecord struct {
	ID           int64     `json:"id"`
	OccurrenceID int64     `json:"occurrence_id"`
	LessonID     int64     `json:"lesson_id"`
	UserID       uuid.UUID `json:"user_id"`
	Date         time.Time `json:"date"`
	Present      bool      `json:"present"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AttendanceFilter фильтр отметок. Пустые срезы и нулевые границы не ограничивают выборку.
// Границы From/To включительные.
type AttendanceFilter struct {
	UserIDs   []uuid.UUID
	LessonIDs []int64
	From      time.Time
	To        time.Time
}
