package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService struct {
	store  Store
	logger *zap.Logger
}

func NewUserService(store Store, logger *zap.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: logger,
	}
}

// RegisterTelegramUser возвращает пользователя с этим Telegram ID, создавая ученика при первом обращении
func (s *UserService) RegisterTelegramUser(ctx context.Context, telegramID int64, firstName, lastName string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existing, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	user := &model.User{
		TelegramID: &telegramID,
		Forename:   firstName,
		Surname:    lastName,
		Role:       model.RoleStudent, // По умолчанию ученик
	}

	err = s.store.CreateUser(ctx, user)
	if errors.Is(err, model.ErrUserExists) {
		// параллельный /start успел создать пользователя
		existing, err = s.store.GetUserByTelegramID(ctx, telegramID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("user with telegram id %d vanished", telegramID)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.String("user_id", user.ID.String()),
		zap.Int64("telegram_id", telegramID),
		zap.String("role", string(user.Role)))

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.store.GetUserByTelegramID(ctx, telegramID)
}

// GuardianStudents ученики, привязанные к опекуну
func (s *UserService) GuardianStudents(ctx context.Context, guardianID uuid.UUID) ([]*model.User, error) {
	return s.store.GuardianStudents(ctx, guardianID)
}

// LinkGuardian привязывает ученика к опекуну
func (s *UserService) LinkGuardian(ctx context.Context, guardianID, studentID uuid.UUID) error {
	const op = "link guardian"

	guardian, err := s.store.GetUser(ctx, guardianID)
	if err != nil {
		return fmt.Errorf("get guardian: %w", err)
	}
	if guardian == nil {
		return apperrors.NotFound(op, "user %s", guardianID)
	}
	if guardian.Role != model.RoleGuardian {
		return fmt.Errorf("user %s is %s, not a guardian", guardianID, guardian.Role)
	}

	student, err := s.store.GetUser(ctx, studentID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return apperrors.NotFound(op, "user %s", studentID)
	}
	if student.Role != model.RoleStudent {
		return fmt.Errorf("user %s is %s, not a student", studentID, student.Role)
	}

	if err := s.store.LinkGuardian(ctx, guardianID, studentID); err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}

	s.logger.Info("Guardian linked",
		zap.String("guardian_id", guardianID.String()),
		zap.String("student_id", studentID.String()))
	return nil
}

// Scope режим отчётов пользователя
func (s *UserService) Scope(user *model.User) (reconciler.Scope, error) {
	scope, err := reconciler.ScopeFor(user)
	if err != nil {
		s.logger.Warn("User has unknown role",
			zap.String("user_id", user.ID.String()),
			zap.String("role", string(user.Role)))
		return reconciler.Scope{}, err
	}
	return scope, nil
}
