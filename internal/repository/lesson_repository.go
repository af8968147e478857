package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var lessonColumns = []string{"l.id", "l.title", "l.start_at", "l.end_at", "l.rrule", "l.created_at"}

type LessonRepository struct {
	*base.Repository
}

func NewLessonRepository(b *base.Repository) *LessonRepository {
	return &LessonRepository{Repository: b}
}

// Create создаёт урок
func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO lessons (title, start_at, end_at, rrule)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query,
		lesson.Title,
		lesson.Start,
		lesson.End,
		lesson.RRule,
	).Scan(&lesson.ID, &lesson.CreatedAt)
	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}

	return nil
}

// GetByID получает урок по ID; (nil, nil), если урока нет
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*model.Lesson, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query, args, err := r.Builder().
		Select(lessonColumns...).
		From("lessons l").
		Where(squirrel.Eq{"l.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get lesson query: %w", err)
	}

	lesson, err := scanLesson(r.QueryRow(ctx, query, args...))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}

	return lesson, nil
}

// List возвращает уроки по фильтру, упорядоченные по началу
func (r *LessonRepository) List(ctx context.Context, filter model.LessonFilter) ([]*model.Lesson, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q := r.Builder().Select(lessonColumns...).From("lessons l")
	if filter.Scoped {
		sub := r.Builder().
			Select("e.lesson_id").
			From("enrollments e").
			Where(squirrel.Eq{"e.user_id": filter.EnrolledUserIDs})
		subSQL, subArgs, err := sub.PlaceholderFormat(squirrel.Question).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build enrollment subquery: %w", err)
		}
		q = q.Where("l.id IN ("+subSQL+")", subArgs...)
	}

	query, args, err := q.OrderBy("l.start_at", "l.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lessons query: %w", err)
	}

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	return lessons, nil
}

// Delete удаляет урок; занятия, записи и отметки удаляются каскадно
func (r *LessonRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if _, err := r.ExecAffected(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var lesson model.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.Title,
		&lesson.Start,
		&lesson.End,
		&lesson.RRule,
		&lesson.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}
