package model

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment запись пользователя на урок
type Enrollment struct {
	UserID    uuid.UUID `json:"user_id"`
	LessonID  int64     `json:"lesson_id"`
	CreatedAt time.Time `json:"created_at"`
}
