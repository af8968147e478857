package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"go.uber.org/zap"
)

// LessonLister источник уроков для фоновой материализации
type LessonLister interface {
	ListLessons(ctx context.Context, filter model.LessonFilter) ([]*model.Lesson, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	lessons       LessonLister
	reconciler    *reconciler.Reconciler
	interval      time.Duration
	horizonMonths int
	now           func() time.Time
	logger        *zap.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(lessons LessonLister, rec *reconciler.Reconciler, interval time.Duration, horizonMonths int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		lessons:       lessons,
		reconciler:    rec,
		interval:      interval,
		horizonMonths: horizonMonths,
		now:           time.Now,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("interval", s.interval),
		zap.Int("horizon_months", s.horizonMonths))

	s.wg.Add(1)
	go s.runMaterializeTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// runMaterializeTask периодически сохраняет занятия всех уроков на горизонт вперёд
func (s *Scheduler) runMaterializeTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.materialize(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.materialize(ctx)
		case <-s.stopChan:
			s.logger.Info("Materialize task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Materialize task cancelled")
			return
		}
	}
}

func (s *Scheduler) materialize(ctx context.Context) {
	s.logger.Info("Starting automatic occurrence materialization")

	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("Failed to materialize occurrences", zap.Error(err))
		return
	}

	s.logger.Info("Automatic materialization completed successfully",
		zap.Int("lessons", res.Lessons),
		zap.Int("created", res.Created),
		zap.Int("failed_lessons", len(res.Failures)))
}

// RunOnce материализует занятия всех уроков в окне [now, now + horizonMonths]
func (s *Scheduler) RunOnce(ctx context.Context) (*reconciler.BatchResult, error) {
	lessons, err := s.lessons.ListLessons(ctx, model.LessonFilter{})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	from := s.now()
	to := from.AddDate(0, s.horizonMonths, 0)

	res, err := s.reconciler.MaterializeAll(ctx, lessons, from, to)
	if err != nil {
		return nil, fmt.Errorf("materialize lessons: %w", err)
	}
	return res, nil
}
