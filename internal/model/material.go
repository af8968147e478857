package model

import (
	"time"

	"github.com/google/uuid"
)

// FileRecord файл, прикреплённый к сохранённому занятию
type FileRecord struct {
	ID           int64      `json:"id"`
	OccurrenceID int64      `json:"occurrence_id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	UploadedBy   *uuid.UUID `json:"uploaded_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HomeworkRecord домашнее задание к сохранённому занятию
type HomeworkRecord struct {
	ID           int64      `json:"id"`
	OccurrenceID int64      `json:"occurrence_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DueAt        *time.Time `json:"due_at"`
	CreatedBy    *uuid.UUID `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}
