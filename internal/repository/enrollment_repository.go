package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/google/uuid"
)

type EnrollmentRepository struct {
	*base.Repository
}

func NewEnrollmentRepository(b *base.Repository) *EnrollmentRepository {
	return &EnrollmentRepository{Repository: b}
}

// Enroll записывает пользователя на урок; повторная запись ничего не меняет
func (r *EnrollmentRepository) Enroll(ctx context.Context, userID uuid.UUID, lessonID int64) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO enrollments (user_id, lesson_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, lesson_id) DO NOTHING
	`

	if _, err := r.ExecAffected(ctx, query, userID, lessonID); err != nil {
		return fmt.Errorf("enroll user: %w", err)
	}
	return nil
}

// Unenroll удаляет запись; false, если записи не было
func (r *EnrollmentRepository) Unenroll(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	affected, err := r.ExecAffected(ctx,
		`DELETE FROM enrollments WHERE user_id = $1 AND lesson_id = $2`,
		userID, lessonID)
	if err != nil {
		return false, fmt.Errorf("unenroll user: %w", err)
	}
	return affected > 0, nil
}

// Count количество записанных на урок
func (r *EnrollmentRepository) Count(ctx context.Context, lessonID int64) (int, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var count int
	err := r.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE lesson_id = $1`, lessonID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// ListUsers пользователи, записанные на урок, по фамилии и имени
func (r *EnrollmentRepository) ListUsers(ctx context.Context, lessonID int64) ([]*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT u.id, u.telegram_id, u.forename, u.surname, u.role, u.created_at
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.lesson_id = $1
		ORDER BY u.surname, u.forename, u.id
	`

	rows, err := r.Query(ctx, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrolled users: %w", err)
	}

	return users, nil
}
