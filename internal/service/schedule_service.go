package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultUpcomingLimit = 3

type ScheduleService struct {
	store         Store
	reconciler    *reconciler.Reconciler
	horizonMonths int
	logger        *zap.Logger
}

func NewScheduleService(store Store, rec *reconciler.Reconciler, horizonMonths int, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		store:         store,
		reconciler:    rec,
		horizonMonths: horizonMonths,
		logger:        logger,
	}
}

// Calendar расписание одного ученика
type Calendar struct {
	Student     *model.User
	Occurrences []LessonOccurrence
	Failures    []reconciler.LessonFailure
}

// LessonRow урок с занятиями в окне. Err заполнен, если правило урока не разворачивается.
type LessonRow struct {
	Lesson      *model.Lesson
	Occurrences []model.Occurrence
	Err         error
}

// LessonDetail урок, его участники и сохранённые занятия с материалами
type LessonDetail struct {
	Lesson      *model.Lesson
	Users       []*model.User
	Occurrences []reconciler.Materials
}

// Upcoming ближайшие занятия по будним дням начиная с now, не больше limit (по умолчанию 3)
func (s *ScheduleService) Upcoming(ctx context.Context, scope reconciler.Scope, now time.Time, limit int) ([]LessonOccurrence, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}

	filter, err := lessonFilter(ctx, s.store, scope)
	if err != nil {
		return nil, err
	}

	lessons, err := s.store.ListLessons(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	// список ближайших занятий не показывает сбойные уроки, ExpandLessons пишет их в лог
	occs, _ := s.reconciler.ExpandLessons(lessons, now, now.AddDate(0, s.horizonMonths, 0))
	occs = s.reconciler.Select(occs, reconciler.Options{
		WeekdaysOnly: true,
		Order:        reconciler.Ascending,
		Limit:        limit,
	})

	return withLessons(occs, lessonsByID(lessons)), nil
}

// Calendars расписания учеников в окне [from, to]. Опекун получает по календарю
// на каждого привязанного ученика, остальные роли - свой собственный.
func (s *ScheduleService) Calendars(ctx context.Context, scope reconciler.Scope, from, to time.Time) ([]Calendar, error) {
	var students []*model.User

	if scope.Mode == reconciler.ModeGuardianScoped {
		linked, err := s.store.GuardianStudents(ctx, scope.Viewer)
		if err != nil {
			return nil, fmt.Errorf("get guardian students: %w", err)
		}
		students = linked
	} else {
		viewer, err := s.store.GetUser(ctx, scope.Viewer)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if viewer == nil {
			return nil, apperrors.NotFound("calendars", "user %s", scope.Viewer)
		}
		students = []*model.User{viewer}
	}

	calendars := make([]Calendar, 0, len(students))
	for _, student := range students {
		filter := model.LessonFilter{}
		if scope.Mode != reconciler.ModeAll {
			filter = model.LessonFilter{Scoped: true, EnrolledUserIDs: []uuid.UUID{student.ID}}
		}

		lessons, err := s.store.ListLessons(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list lessons: %w", err)
		}

		occs, failures := s.reconciler.ExpandLessons(lessons, from, to)
		calendars = append(calendars, Calendar{
			Student:     student,
			Occurrences: withLessons(occs, lessonsByID(lessons)),
			Failures:    failures,
		})
	}

	return calendars, nil
}

// AdminLessons все уроки с занятиями в окне [from, to]
func (s *ScheduleService) AdminLessons(ctx context.Context, from, to time.Time) ([]LessonRow, error) {
	lessons, err := s.store.ListLessons(ctx, model.LessonFilter{})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	rows := make([]LessonRow, 0, len(lessons))
	for _, lesson := range lessons {
		occs, err := s.reconciler.Expand(lesson, from, to)
		if err != nil {
			s.logger.Warn("Lesson has invalid recurrence",
				zap.Int64("lesson_id", lesson.ID),
				zap.String("rrule", lesson.RRuleText()),
				zap.Error(err))
			rows = append(rows, LessonRow{Lesson: lesson, Err: err})
			continue
		}
		rows = append(rows, LessonRow{Lesson: lesson, Occurrences: occs})
	}

	return rows, nil
}

// LessonDetail сохранённые занятия урока по будним дням в окне [from, to] с файлами и домашними заданиями
func (s *ScheduleService) LessonDetail(ctx context.Context, lessonID int64, from, to time.Time) (*LessonDetail, error) {
	lesson, err := s.store.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, apperrors.NotFound("lesson detail", "lesson %d", lessonID)
	}

	users, err := s.store.ListEnrolledUsers(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}

	occs, err := s.store.ListOccurrences(ctx, lessonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	occs = s.reconciler.Select(occs, reconciler.Options{WeekdaysOnly: true, Order: reconciler.Ascending})

	materials, err := s.reconciler.MaterialsFor(ctx, occs)
	if err != nil {
		return nil, err
	}

	return &LessonDetail{
		Lesson:      lesson,
		Users:       users,
		Occurrences: materials,
	}, nil
}
