package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/google/uuid"
)

// LessonOccurrence занятие вместе с уроком, к которому оно относится
type LessonOccurrence struct {
	Lesson     *model.Lesson
	Occurrence model.Occurrence
}

// lessonFilter переводит Scope в фильтр уроков
func lessonFilter(ctx context.Context, store Store, scope reconciler.Scope) (model.LessonFilter, error) {
	switch scope.Mode {
	case reconciler.ModeAll:
		return model.LessonFilter{}, nil
	case reconciler.ModeEnrolledOnly:
		return model.LessonFilter{Scoped: true, EnrolledUserIDs: []uuid.UUID{scope.Viewer}}, nil
	case reconciler.ModeGuardianScoped:
		students, err := store.GuardianStudents(ctx, scope.Viewer)
		if err != nil {
			return model.LessonFilter{}, fmt.Errorf("get guardian students: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(students))
		for _, st := range students {
			ids = append(ids, st.ID)
		}
		return model.LessonFilter{Scoped: true, EnrolledUserIDs: ids}, nil
	}
	return model.LessonFilter{}, fmt.Errorf("unsupported report mode %s", scope.Mode)
}

// occurrenceAt проверяет, что start совпадает с занятием урока, и сохраняет это занятие
func occurrenceAt(ctx context.Context, store Store, rec *reconciler.Reconciler, lessonID int64, start time.Time) (*model.Lesson, model.Occurrence, error) {
	const op = "find occurrence"

	lesson, err := store.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, model.Occurrence{}, err
	}
	if lesson == nil {
		return nil, model.Occurrence{}, apperrors.NotFound(op, "lesson %d", lessonID)
	}

	spec, err := reconciler.SpecFor(lesson)
	if err != nil {
		return nil, model.Occurrence{}, err
	}

	res, err := rec.Materialize(ctx, lesson.ID, spec, start, start)
	if err != nil {
		return nil, model.Occurrence{}, err
	}
	if len(res.Occurrences) == 0 || !res.Occurrences[0].Start.Equal(start) {
		return nil, model.Occurrence{}, apperrors.NotFound(op, "lesson %d has no occurrence at %s",
			lessonID, start.Format(time.RFC3339))
	}

	return lesson, res.Occurrences[0], nil
}

func lessonIDs(lessons []*model.Lesson) []int64 {
	ids := make([]int64, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	return ids
}

func lessonsByID(lessons []*model.Lesson) map[int64]*model.Lesson {
	m := make(map[int64]*model.Lesson, len(lessons))
	for _, l := range lessons {
		m[l.ID] = l
	}
	return m
}

// withLessons подставляет уроки к занятиям; занятия неизвестных уроков отбрасываются
func withLessons(occs []model.Occurrence, lessons map[int64]*model.Lesson) []LessonOccurrence {
	result := make([]LessonOccurrence, 0, len(occs))
	for _, occ := range occs {
		lesson, ok := lessons[occ.LessonID]
		if !ok {
			continue
		}
		result = append(result, LessonOccurrence{Lesson: lesson, Occurrence: occ})
	}
	return result
}

func startOf(lo LessonOccurrence) time.Time {
	return lo.Occurrence.Start
}
