package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/Freeeeeet/lesson_scheduler/internal/recurrence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LessonService struct {
	store         Store
	reconciler    *reconciler.Reconciler
	horizonMonths int
	now           func() time.Time
	logger        *zap.Logger
}

func NewLessonService(store Store, rec *reconciler.Reconciler, horizonMonths int, logger *zap.Logger) *LessonService {
	return &LessonService{
		store:         store,
		reconciler:    rec,
		horizonMonths: horizonMonths,
		now:           time.Now,
		logger:        logger,
	}
}

// NewLesson данные для создания урока
type NewLesson struct {
	Title     string
	Start     time.Time
	End       time.Time
	Frequency recurrence.Frequency
	Interval  int
	Until     *time.Time
	OwnerID   uuid.UUID // uuid.Nil - урок без владельца
}

// CreateLesson создаёт урок, записывает на него владельца и сохраняет занятия на горизонт вперёд.
// Ошибка материализации не отменяет создание урока: занятия досоздаст фоновая задача.
func (s *LessonService) CreateLesson(ctx context.Context, in NewLesson) (*model.Lesson, error) {
	s.logger.Info("CreateLesson called",
		zap.String("title", in.Title),
		zap.Time("start", in.Start),
		zap.Time("end", in.End),
		zap.Stringer("frequency", in.Frequency),
		zap.Int("interval", in.Interval),
		zap.String("owner_id", in.OwnerID.String()))

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("lesson title is required")
	}

	spec := recurrence.Spec{
		AnchorStart: in.Start,
		AnchorEnd:   in.End,
		Frequency:   in.Frequency,
		Interval:    in.Interval,
		Until:       in.Until,
	}
	if err := spec.Validate(); err != nil {
		s.logger.Warn("Invalid lesson recurrence",
			zap.String("title", title),
			zap.Error(err))
		return nil, err
	}

	rule, err := spec.RRule()
	if err != nil {
		return nil, err
	}

	lesson := &model.Lesson{
		Title: title,
		Start: in.Start,
		End:   in.End,
	}
	if rule != "" {
		lesson.RRule = &rule
	}

	if err := s.store.CreateLesson(ctx, lesson); err != nil {
		s.logger.Error("Failed to create lesson",
			zap.String("title", title),
			zap.Error(err))
		return nil, fmt.Errorf("create lesson: %w", err)
	}

	if in.OwnerID != uuid.Nil {
		if err := s.store.Enroll(ctx, in.OwnerID, lesson.ID); err != nil {
			s.logger.Error("Failed to enroll lesson owner",
				zap.Int64("lesson_id", lesson.ID),
				zap.String("user_id", in.OwnerID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("enroll owner: %w", err)
		}
	}

	from := s.now()
	to := from.AddDate(0, s.horizonMonths, 0)
	res, err := s.reconciler.Materialize(ctx, lesson.ID, spec, from, to)
	if err != nil {
		s.logger.Error("Failed to materialize new lesson, keeping it",
			zap.Int64("lesson_id", lesson.ID),
			zap.Error(err))
	} else {
		s.logger.Info("Lesson created successfully",
			zap.Int64("lesson_id", lesson.ID),
			zap.String("rrule", lesson.RRuleText()),
			zap.Int("occurrences_created", res.Created))
	}

	return lesson, nil
}

// Enroll записывает пользователя на урок; повторная запись ничего не меняет
func (s *LessonService) Enroll(ctx context.Context, userID uuid.UUID, lessonID int64) error {
	const op = "enroll"

	lesson, err := s.store.FindLesson(ctx, lessonID)
	if err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return apperrors.NotFound(op, "lesson %d", lessonID)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return apperrors.NotFound(op, "user %s", userID)
	}

	if err := s.store.Enroll(ctx, userID, lessonID); err != nil {
		return fmt.Errorf("enroll user: %w", err)
	}

	s.logger.Info("User enrolled",
		zap.Int64("lesson_id", lessonID),
		zap.String("user_id", userID.String()))
	return nil
}

// Unenroll выписывает пользователя из урока. Если записанных не осталось,
// урок удаляется вместе с занятиями; тогда возвращается true.
func (s *LessonService) Unenroll(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	removed, err := s.store.Unenroll(ctx, userID, lessonID)
	if err != nil {
		return false, fmt.Errorf("unenroll user: %w", err)
	}
	if !removed {
		return false, apperrors.NotFound("unenroll", "user %s in lesson %d", userID, lessonID)
	}

	count, err := s.store.CountEnrollments(ctx, lessonID)
	if err != nil {
		return false, fmt.Errorf("count enrollments: %w", err)
	}
	if count > 0 {
		s.logger.Info("User unenrolled",
			zap.Int64("lesson_id", lessonID),
			zap.String("user_id", userID.String()),
			zap.Int("remaining", count))
		return false, nil
	}

	if err := s.store.DeleteLesson(ctx, lessonID); err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}

	s.logger.Info("Last user unenrolled, lesson deleted",
		zap.Int64("lesson_id", lessonID),
		zap.String("user_id", userID.String()))
	return true, nil
}

// AttachFile прикрепляет файл к сохранённому занятию
func (s *LessonService) AttachFile(ctx context.Context, occurrenceID int64, name, url string, uploadedBy *uuid.UUID) (*model.FileRecord, error) {
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	if occ == nil {
		return nil, apperrors.NotFound("attach file", "occurrence %d", occurrenceID)
	}
	return s.createFile(ctx, occ.ID, name, url, uploadedBy)
}

// AttachFileAt прикрепляет файл к занятию урока, начинающемуся в start.
// Занятие сохраняется, если его ещё нет.
func (s *LessonService) AttachFileAt(ctx context.Context, lessonID int64, start time.Time, name, url string, uploadedBy *uuid.UUID) (*model.FileRecord, error) {
	_, occ, err := occurrenceAt(ctx, s.store, s.reconciler, lessonID, start)
	if err != nil {
		return nil, err
	}
	return s.createFile(ctx, occ.ID, name, url, uploadedBy)
}

func (s *LessonService) createFile(ctx context.Context, occurrenceID int64, name, url string, uploadedBy *uuid.UUID) (*model.FileRecord, error) {
	f := &model.FileRecord{
		OccurrenceID: occurrenceID,
		Name:         name,
		URL:          url,
		UploadedBy:   uploadedBy,
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		s.logger.Error("Failed to attach file",
			zap.Int64("occurrence_id", occurrenceID),
			zap.String("name", name),
			zap.Error(err))
		return nil, fmt.Errorf("create file: %w", err)
	}

	s.logger.Info("File attached",
		zap.Int64("file_id", f.ID),
		zap.Int64("occurrence_id", occurrenceID),
		zap.String("name", name))
	return f, nil
}

// AttachHomework задаёт домашнее задание к сохранённому занятию
func (s *LessonService) AttachHomework(ctx context.Context, occurrenceID int64, title, description string, dueAt *time.Time, createdBy *uuid.UUID) (*model.HomeworkRecord, error) {
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	if occ == nil {
		return nil, apperrors.NotFound("attach homework", "occurrence %d", occurrenceID)
	}
	return s.createHomework(ctx, occ.ID, title, description, dueAt, createdBy)
}

// AttachHomeworkAt задаёт домашнее задание к занятию урока, начинающемуся в start.
// Занятие сохраняется, если его ещё нет.
func (s *LessonService) AttachHomeworkAt(ctx context.Context, lessonID int64, start time.Time, title, description string, dueAt *time.Time, createdBy *uuid.UUID) (*model.HomeworkRecord, error) {
	_, occ, err := occurrenceAt(ctx, s.store, s.reconciler, lessonID, start)
	if err != nil {
		return nil, err
	}
	return s.createHomework(ctx, occ.ID, title, description, dueAt, createdBy)
}

func (s *LessonService) createHomework(ctx context.Context, occurrenceID int64, title, description string, dueAt *time.Time, createdBy *uuid.UUID) (*model.HomeworkRecord, error) {
	h := &model.HomeworkRecord{
		OccurrenceID: occurrenceID,
		Title:        title,
		Description:  description,
		DueAt:        dueAt,
		CreatedBy:    createdBy,
	}
	if err := s.store.CreateHomework(ctx, h); err != nil {
		s.logger.Error("Failed to attach homework",
			zap.Int64("occurrence_id", occurrenceID),
			zap.Error(err))
		return nil, fmt.Errorf("create homework: %w", err)
	}

	s.logger.Info("Homework attached",
		zap.Int64("homework_id", h.ID),
		zap.Int64("occurrence_id", occurrenceID))
	return h, nil
}
