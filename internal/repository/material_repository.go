package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
)

// MaterialRepository файлы и домашние задания занятий
type MaterialRepository struct {
	*base.Repository
}

func NewMaterialRepository(b *base.Repository) *MaterialRepository {
	return &MaterialRepository{Repository: b}
}

// CreateFile прикрепляет файл к занятию
func (r *MaterialRepository) CreateFile(ctx context.Context, f *model.FileRecord) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO occurrence_files (occurrence_id, name, url, uploaded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, f.OccurrenceID, f.Name, f.URL, f.UploadedBy).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// FilesByOccurrence файлы занятия в порядке загрузки
func (r *MaterialRepository) FilesByOccurrence(ctx context.Context, occurrenceID int64) ([]*model.FileRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, occurrence_id, name, url, uploaded_by, created_at
		FROM occurrence_files
		WHERE occurrence_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.Query(ctx, query, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("get files by occurrence: %w", err)
	}
	defer rows.Close()

	var files []*model.FileRecord
	for rows.Next() {
		var f model.FileRecord
		if err := rows.Scan(&f.ID, &f.OccurrenceID, &f.Name, &f.URL, &f.UploadedBy, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return files, nil
}

// CreateHomework прикрепляет домашнее задание к занятию
func (r *MaterialRepository) CreateHomework(ctx context.Context, h *model.HomeworkRecord) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO homework (occurrence_id, title, description, due_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, h.OccurrenceID, h.Title, h.Description, h.DueAt, h.CreatedBy).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

// HomeworkByOccurrence домашние задания занятия
func (r *MaterialRepository) HomeworkByOccurrence(ctx context.Context, occurrenceID int64) ([]*model.HomeworkRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, occurrence_id, title, description, due_at, created_by, created_at
		FROM homework
		WHERE occurrence_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.Query(ctx, query, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("get homework by occurrence: %w", err)
	}
	defer rows.Close()

	var items []*model.HomeworkRecord
	for rows.Next() {
		var h model.HomeworkRecord
		if err := rows.Scan(&h.ID, &h.OccurrenceID, &h.Title, &h.Description, &h.DueAt, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan homework: %w", err)
		}
		items = append(items, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate homework: %w", err)
	}

	return items, nil
}
