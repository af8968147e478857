package reconciler

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/recurrence"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

type Reconciler struct {
	store    Store
	expander *recurrence.Expander
	workers  int
	logger   *zap.Logger
}

func NewReconciler(store Store, expander *recurrence.Expander, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		expander: expander,
		workers:  defaultWorkers,
		logger:   logger,
	}
}

// WithWorkers ограничивает число уроков, материализуемых одновременно
func (r *Reconciler) WithWorkers(n int) *Reconciler {
	if n > 0 {
		r.workers = n
	}
	return r
}

func (r *Reconciler) Expander() *recurrence.Expander {
	return r.expander
}

// LessonFailure урок, который не удалось развернуть
type LessonFailure struct {
	LessonID int64
	Err      error
}

// MaterializeResult итог материализации одного урока
type MaterializeResult struct {
	LessonID    int64
	Occurrences []model.Occurrence // с заполненными ID, по возрастанию начала
	Created     int
}

// BatchResult итог MaterializeAll
type BatchResult struct {
	Lessons  int
	Created  int
	Failures []LessonFailure
}

// SpecFor собирает правило повторения урока
func SpecFor(lesson *model.Lesson) (recurrence.Spec, error) {
	return recurrence.Parse(lesson.RRuleText(), lesson.Start, lesson.End)
}

// Expand разворачивает занятия урока в окне [from, to]. Занятия не сохраняются (ID == 0).
func (r *Reconciler) Expand(lesson *model.Lesson, from, to time.Time) ([]model.Occurrence, error) {
	spec, err := SpecFor(lesson)
	if err != nil {
		return nil, err
	}
	return r.expand(lesson.ID, spec, from, to)
}

func (r *Reconciler) expand(lessonID int64, spec recurrence.Spec, from, to time.Time) ([]model.Occurrence, error) {
	occs, err := r.expander.Expand(spec, from, to)
	if err != nil {
		return nil, err
	}

	result := make([]model.Occurrence, 0, len(occs))
	for _, o := range occs {
		result = append(result, model.Occurrence{
			LessonID: lessonID,
			Start:    o.Start,
			End:      o.End,
		})
	}
	return result, nil
}

// ExpandLessons разворачивает несколько уроков. Урок с неверным правилом пропускается
// и попадает в failures; остальные возвращаются одним списком по возрастанию начала.
func (r *Reconciler) ExpandLessons(lessons []*model.Lesson, from, to time.Time) ([]model.Occurrence, []LessonFailure) {
	var (
		all      []model.Occurrence
		failures []LessonFailure
	)

	for _, lesson := range lessons {
		occs, err := r.Expand(lesson, from, to)
		if err != nil {
			r.logger.Warn("Failed to expand lesson, skipping",
				zap.Int64("lesson_id", lesson.ID),
				zap.String("rrule", lesson.RRuleText()),
				zap.Error(err))
			failures = append(failures, LessonFailure{LessonID: lesson.ID, Err: err})
			continue
		}
		all = append(all, occs...)
	}

	SortOccurrences(all, Ascending)
	return all, failures
}

// Materialize сохраняет занятия урока в окне [from, to].
// Повторный вызов для пересекающегося окна не создаёт дублей: уникальность (lesson_id, start)
// обеспечивает хранилище. Ошибка хранилища прерывает материализацию без повторов.
func (r *Reconciler) Materialize(ctx context.Context, lessonID int64, spec recurrence.Spec, from, to time.Time) (*MaterializeResult, error) {
	occs, err := r.expand(lessonID, spec, from, to)
	if err != nil {
		return nil, err
	}

	result := &MaterializeResult{
		LessonID:    lessonID,
		Occurrences: make([]model.Occurrence, 0, len(occs)),
	}

	for _, occ := range occs {
		id, created, err := r.store.UpsertOccurrence(ctx, lessonID, occ.Start, occ.End)
		if err != nil {
			r.logger.Error("Failed to upsert occurrence",
				zap.Int64("lesson_id", lessonID),
				zap.Time("start", occ.Start),
				zap.Error(err))
			return nil, apperrors.StorageFailure("materialize", err)
		}

		occ.ID = id
		if created {
			result.Created++
		}
		result.Occurrences = append(result.Occurrences, occ)
	}

	r.logger.Debug("Lesson materialized",
		zap.Int64("lesson_id", lessonID),
		zap.Time("window_start", from),
		zap.Time("window_end", to),
		zap.Int("occurrences", len(result.Occurrences)),
		zap.Int("created", result.Created))

	return result, nil
}

// MaterializeLesson загружает урок и материализует его занятия
func (r *Reconciler) MaterializeLesson(ctx context.Context, lessonID int64, from, to time.Time) (*MaterializeResult, error) {
	lesson, err := r.store.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, apperrors.StorageFailure("find lesson", err)
	}
	if lesson == nil {
		return nil, apperrors.NotFound("materialize lesson", "lesson %d", lessonID)
	}

	spec, err := SpecFor(lesson)
	if err != nil {
		return nil, err
	}
	return r.Materialize(ctx, lesson.ID, spec, from, to)
}

// MaterializeAll материализует уроки параллельно.
// Уроки с неверным правилом пропускаются, ошибка хранилища отменяет остальные.
func (r *Reconciler) MaterializeAll(ctx context.Context, lessons []*model.Lesson, from, to time.Time) (*BatchResult, error) {
	var (
		mu     sync.Mutex
		result = &BatchResult{}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, lesson := range lessons {
		g.Go(func() error {
			spec, err := SpecFor(lesson)
			if err != nil {
				r.logger.Warn("Invalid recurrence, lesson skipped",
					zap.Int64("lesson_id", lesson.ID),
					zap.String("rrule", lesson.RRuleText()),
					zap.Error(err))
				mu.Lock()
				result.Failures = append(result.Failures, LessonFailure{LessonID: lesson.ID, Err: err})
				mu.Unlock()
				return nil
			}

			res, err := r.Materialize(ctx, lesson.ID, spec, from, to)
			if err != nil {
				return err
			}

			mu.Lock()
			result.Lessons++
			result.Created += res.Created
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(result.Failures, func(a, b LessonFailure) int {
		return cmp.Compare(a.LessonID, b.LessonID)
	})

	r.logger.Info("Materialized occurrences for lessons",
		zap.Int("total_lessons", len(lessons)),
		zap.Int("materialized_lessons", result.Lessons),
		zap.Int("failed_lessons", len(result.Failures)),
		zap.Int("total_created", result.Created),
		zap.Time("window_start", from),
		zap.Time("window_end", to))

	return result, nil
}
