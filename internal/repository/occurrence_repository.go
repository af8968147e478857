package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type OccurrenceRepository struct {
	*base.Repository
}

func NewOccurrenceRepository(b *base.Repository) *OccurrenceRepository {
	return &OccurrenceRepository{Repository: b}
}

// Upsert создаёт занятие (lessonID, start), если его нет, и возвращает его ID.
// Конкурентные вызовы не создают дублей: конфликт по lesson_occurrences_lesson_start_key
// превращается в чтение существующей строки.
func (r *OccurrenceRepository) Upsert(ctx context.Context, lessonID int64, start, end time.Time) (int64, bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)

	query := `
		INSERT INTO lesson_occurrences (lesson_id, start_at, end_at)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT lesson_occurrences_lesson_start_key DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.QueryRow(ctx, query, lessonID, start, end).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !base.IsNotFound(err) {
		return 0, false, fmt.Errorf("insert occurrence: %w", err)
	}

	err = r.QueryRow(ctx,
		`SELECT id FROM lesson_occurrences WHERE lesson_id = $1 AND start_at = $2`,
		lessonID, start,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("get existing occurrence: %w", err)
	}

	return id, false, nil
}

// GetByID получает занятие; (nil, nil), если его нет
func (r *OccurrenceRepository) GetByID(ctx context.Context, id int64) (*model.Occurrence, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, lesson_id, start_at, end_at
		FROM lesson_occurrences
		WHERE id = $1
	`

	occ, err := scanOccurrence(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get occurrence by id: %w", err)
	}

	return &occ, nil
}

// ListByLesson возвращает сохранённые занятия урока с началом в [from, to]
func (r *OccurrenceRepository) ListByLesson(ctx context.Context, lessonID int64, from, to time.Time) ([]model.Occurrence, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, lesson_id, start_at, end_at
		FROM lesson_occurrences
		WHERE lesson_id = $1
		  AND start_at >= $2
		  AND start_at <= $3
		ORDER BY start_at
	`

	rows, err := r.Query(ctx, query, lessonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occs []model.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}

	return occs, nil
}

func scanOccurrence(row pgx.Row) (model.Occurrence, error) {
	var occ model.Occurrence
	err := row.Scan(&occ.ID, &occ.LessonID, &occ.Start, &occ.End)
	return occ, err
}
