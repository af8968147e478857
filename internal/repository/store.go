package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store собирает репозитории Postgres в одно хранилище для сервисов и Reconciler.
// Все ошибки, кроме model.ErrUserExists, возвращаются как apperrors.KindStorageFailure.
type Store struct {
	lessons     *LessonRepository
	occurrences *OccurrenceRepository
	attendance  *AttendanceRepository
	enrollments *EnrollmentRepository
	materials   *MaterialRepository
	users       *UserRepository
}

func NewStore(pool *pgxpool.Pool, timeout time.Duration) *Store {
	b := base.NewRepository(pool, timeout)
	return &Store{
		lessons:     NewLessonRepository(b),
		occurrences: NewOccurrenceRepository(b),
		attendance:  NewAttendanceRepository(b),
		enrollments: NewEnrollmentRepository(b),
		materials:   NewMaterialRepository(b),
		users:       NewUserRepository(b),
	}
}

func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, model.ErrUserExists) {
		return err
	}
	return apperrors.StorageFailure(op, err)
}

func (s *Store) FindLesson(ctx context.Context, id int64) (*model.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	return lesson, storageErr("find lesson", err)
}

func (s *Store) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	return storageErr("create lesson", s.lessons.Create(ctx, lesson))
}

func (s *Store) ListLessons(ctx context.Context, filter model.LessonFilter) ([]*model.Lesson, error) {
	lessons, err := s.lessons.List(ctx, filter)
	return lessons, storageErr("list lessons", err)
}

func (s *Store) DeleteLesson(ctx context.Context, id int64) error {
	return storageErr("delete lesson", s.lessons.Delete(ctx, id))
}

func (s *Store) UpsertOccurrence(ctx context.Context, lessonID int64, start, end time.Time) (int64, bool, error) {
	id, created, err := s.occurrences.Upsert(ctx, lessonID, start, end)
	return id, created, storageErr("upsert occurrence", err)
}

func (s *Store) GetOccurrence(ctx context.Context, id int64) (*model.Occurrence, error) {
	occ, err := s.occurrences.GetByID(ctx, id)
	return occ, storageErr("get occurrence", err)
}

func (s *Store) ListOccurrences(ctx context.Context, lessonID int64, from, to time.Time) ([]model.Occurrence, error) {
	occs, err := s.occurrences.ListByLesson(ctx, lessonID, from, to)
	return occs, storageErr("list occurrences", err)
}

func (s *Store) FindAttendance(ctx context.Context, filter model.AttendanceFilter) ([]*model.AttendanceRecord, error) {
	records, err := s.attendance.Find(ctx, filter)
	return records, storageErr("find attendance", err)
}

func (s *Store) UpsertAttendance(ctx context.Context, occurrenceID int64, userID uuid.UUID, present bool) (*model.AttendanceRecord, error) {
	rec, err := s.attendance.Upsert(ctx, occurrenceID, userID, present)
	return rec, storageErr("upsert attendance", err)
}

func (s *Store) FindFiles(ctx context.Context, occurrenceID int64) ([]*model.FileRecord, error) {
	files, err := s.materials.FilesByOccurrence(ctx, occurrenceID)
	return files, storageErr("find files", err)
}

func (s *Store) FindHomework(ctx context.Context, occurrenceID int64) ([]*model.HomeworkRecord, error) {
	items, err := s.materials.HomeworkByOccurrence(ctx, occurrenceID)
	return items, storageErr("find homework", err)
}

func (s *Store) CreateFile(ctx context.Context, f *model.FileRecord) error {
	return storageErr("create file", s.materials.CreateFile(ctx, f))
}

func (s *Store) CreateHomework(ctx context.Context, h *model.HomeworkRecord) error {
	return storageErr("create homework", s.materials.CreateHomework(ctx, h))
}

func (s *Store) Enroll(ctx context.Context, userID uuid.UUID, lessonID int64) error {
	return storageErr("enroll", s.enrollments.Enroll(ctx, userID, lessonID))
}

func (s *Store) Unenroll(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	ok, err := s.enrollments.Unenroll(ctx, userID, lessonID)
	return ok, storageErr("unenroll", err)
}

func (s *Store) CountEnrollments(ctx context.Context, lessonID int64) (int, error) {
	n, err := s.enrollments.Count(ctx, lessonID)
	return n, storageErr("count enrollments", err)
}

func (s *Store) ListEnrolledUsers(ctx context.Context, lessonID int64) ([]*model.User, error) {
	users, err := s.enrollments.ListUsers(ctx, lessonID)
	return users, storageErr("list enrolled users", err)
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return storageErr("create user", s.users.Create(ctx, user))
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	return user, storageErr("get user", err)
}

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	return user, storageErr("get user by telegram id", err)
}

func (s *Store) LinkGuardian(ctx context.Context, guardianID, studentID uuid.UUID) error {
	return storageErr("link guardian", s.users.LinkGuardian(ctx, guardianID, studentID))
}

func (s *Store) GuardianStudents(ctx context.Context, guardianID uuid.UUID) ([]*model.User, error) {
	users, err := s.users.GuardianStudents(ctx, guardianID)
	return users, storageErr("guardian students", err)
}
