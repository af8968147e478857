package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AttendanceRepository struct {
	*base.Repository
}

func NewAttendanceRepository(b *base.Repository) *AttendanceRepository {
	return &AttendanceRepository{Repository: b}
}

// Upsert ставит отметку ученику на занятии. lesson_id и date копируются из строки занятия.
// (nil, nil), если занятия нет.
func (r *AttendanceRepository) Upsert(ctx context.Context, occurrenceID int64, userID uuid.UUID, present bool) (*model.AttendanceRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO attendance (occurrence_id, lesson_id, user_id, date, present)
		SELECT o.id, o.lesson_id, $2, o.start_at, $3
		FROM lesson_occurrences o
		WHERE o.id = $1
		ON CONFLICT ON CONSTRAINT attendance_occurrence_user_key
		DO UPDATE SET present = EXCLUDED.present, updated_at = now()
		RETURNING id, occurrence_id, lesson_id, user_id, date, present, created_at, updated_at
	`

	rec, err := scanAttendance(r.QueryRow(ctx, query, occurrenceID, userID, present))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}

	return rec, nil
}

// Find возвращает отметки по фильтру, упорядоченные по дате
func (r *AttendanceRepository) Find(ctx context.Context, filter model.AttendanceFilter) ([]*model.AttendanceRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q := r.Builder().
		Select("id", "occurrence_id", "lesson_id", "user_id", "date", "present", "created_at", "updated_at").
		From("attendance")

	if len(filter.UserIDs) > 0 {
		q = q.Where(squirrel.Eq{"user_id": filter.UserIDs})
	}
	if len(filter.LessonIDs) > 0 {
		q = q.Where(squirrel.Eq{"lesson_id": filter.LessonIDs})
	}
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"date": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"date": filter.To})
	}

	query, args, err := q.OrderBy("date", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find attendance query: %w", err)
	}

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}

	return records, nil
}

func scanAttendance(row pgx.Row) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(
		&rec.ID,
		&rec.OccurrenceID,
		&rec.LessonID,
		&rec.UserID,
		&rec.Date,
		&rec.Present,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
