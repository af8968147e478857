package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(b *base.Repository) *UserRepository {
	return &UserRepository{Repository: b}
}

// Create создаёт нового пользователя; пустой ID генерируется
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, telegram_id, forename, surname, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query,
		user.ID,
		user.TelegramID,
		user.Forename,
		user.Surname,
		user.Role,
	).Scan(&user.CreatedAt)
	if err != nil {
		if base.IsUniqueViolation(err, "") {
			return model.ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, telegram_id, forename, surname, role, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, telegram_id, forename, surname, role, created_at
		FROM users
		WHERE telegram_id = $1
	`

	user, err := scanUser(r.QueryRow(ctx, query, telegramID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return user, nil
}

// LinkGuardian привязывает ученика к опекуну
func (r *UserRepository) LinkGuardian(ctx context.Context, guardianID, studentID uuid.UUID) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO guardians (guardian_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (guardian_id, student_id) DO NOTHING
	`

	if _, err := r.ExecAffected(ctx, query, guardianID, studentID); err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}
	return nil
}

// GuardianStudents ученики, привязанные к опекуну
func (r *UserRepository) GuardianStudents(ctx context.Context, guardianID uuid.UUID) ([]*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT u.id, u.telegram_id, u.forename, u.surname, u.role, u.created_at
		FROM guardians g
		JOIN users u ON u.id = g.student_id
		WHERE g.guardian_id = $1
		ORDER BY u.surname, u.forename, u.id
	`

	rows, err := r.Query(ctx, query, guardianID)
	if err != nil {
		return nil, fmt.Errorf("get guardian students: %w", err)
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
		return nil, fmt.Errorf("iterate guardian students: %w", err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Forename,
		&user.Surname,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
