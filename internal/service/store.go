package service

import (
	"context"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/google/uuid"
)

// Store хранилище сервисов. Чтение отсутствующей сущности возвращает (nil, nil),
// ошибки доступа к хранилищу имеют вид apperrors.KindStorageFailure.
type Store interface {
	reconciler.Store

	CreateLesson(ctx context.Context, lesson *model.Lesson) error
	ListLessons(ctx context.Context, filter model.LessonFilter) ([]*model.Lesson, error)
	DeleteLesson(ctx context.Context, id int64) error

	Enroll(ctx context.Context, userID uuid.UUID, lessonID int64) error
	Unenroll(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error)
	CountEnrollments(ctx context.Context, lessonID int64) (int, error)
	ListEnrolledUsers(ctx context.Context, lessonID int64) ([]*model.User, error)

	GetOccurrence(ctx context.Context, id int64) (*model.Occurrence, error)

	UpsertAttendance(ctx context.Context, occurrenceID int64, userID uuid.UUID, present bool) (*model.AttendanceRecord, error)

	CreateFile(ctx context.Context, f *model.FileRecord) error
	CreateHomework(ctx context.Context, h *model.HomeworkRecord) error

	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	LinkGuardian(ctx context.Context, guardianID, studentID uuid.UUID) error
	GuardianStudents(ctx context.Context, guardianID uuid.UUID) ([]*model.User, error)
}
