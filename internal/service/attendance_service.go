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

type AttendanceService struct {
	store      Store
	reconciler *reconciler.Reconciler
	logger     *zap.Logger
}

func NewAttendanceService(store Store, rec *reconciler.Reconciler, logger *zap.Logger) *AttendanceService {
	return &AttendanceService{
		store:      store,
		reconciler: rec,
		logger:     logger,
	}
}

// RegisterEntry занятие дня с записанными пользователями и уже стоящими отметками
type RegisterEntry struct {
	Lesson     *model.Lesson
	Occurrence model.Occurrence
	Users      []*model.User
	Marks      []*model.AttendanceRecord
}

// History посещаемость пользователя: только занятия с отметкой, от новых к старым.
// Failures уроки, правило которых не удалось развернуть; их сохранённые отметки всё равно входят в Entries.
type History struct {
	Entries  []HistoryEntry
	Summary  reconciler.AttendanceSummary
	Failures []reconciler.LessonFailure
}

type HistoryEntry struct {
	Lesson     *model.Lesson
	Occurrence model.Occurrence
	Present    bool
}

// DaySummary посещаемость за один день
type DaySummary struct {
	Day     time.Time
	Present int
	Total   int
	Rate    int
}

// TakeRegister отмечает присутствие на занятии урока, начинающемся ровно в start.
// Отметка ставится каждому записанному пользователю: присутствует тот, кто есть в presentIDs.
// Повторный вызов перезаписывает отметки.
func (s *AttendanceService) TakeRegister(ctx context.Context, lessonID int64, start time.Time, presentIDs []uuid.UUID) ([]*model.AttendanceRecord, error) {
	s.logger.Info("TakeRegister called",
		zap.Int64("lesson_id", lessonID),
		zap.Time("start", start),
		zap.Int("present_count", len(presentIDs)))

	_, occ, err := occurrenceAt(ctx, s.store, s.reconciler, lessonID, start)
	if err != nil {
		s.logger.Warn("Register rejected",
			zap.Int64("lesson_id", lessonID),
			zap.Time("start", start),
			zap.Error(err))
		return nil, err
	}

	users, err := s.store.ListEnrolledUsers(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}

	present := make(map[uuid.UUID]bool, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = true
	}

	records := make([]*model.AttendanceRecord, 0, len(users))
	for _, u := range users {
		rec, err := s.store.UpsertAttendance(ctx, occ.ID, u.ID, present[u.ID])
		if err != nil {
			s.logger.Error("Failed to save attendance",
				zap.Int64("occurrence_id", occ.ID),
				zap.String("user_id", u.ID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("upsert attendance: %w", err)
		}
		if rec == nil {
			// урок удалили между материализацией и записью
			return nil, apperrors.NotFound("take register", "occurrence %d", occ.ID)
		}
		delete(present, u.ID)
		records = append(records, rec)
	}

	for id := range present {
		s.logger.Warn("Present user is not enrolled, ignored",
			zap.Int64("lesson_id", lessonID),
			zap.String("user_id", id.String()))
	}

	s.logger.Info("Register taken",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("occurrence_id", occ.ID),
		zap.Int("marks", len(records)))

	return records, nil
}

// Register журнал одного занятия урока lessonID, начинающегося ровно в start
func (s *AttendanceService) Register(ctx context.Context, lessonID int64, start time.Time) (*RegisterEntry, error) {
	lesson, occ, err := occurrenceAt(ctx, s.store, s.reconciler, lessonID, start)
	if err != nil {
		return nil, err
	}

	users, err := s.store.ListEnrolledUsers(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}

	records, err := s.store.FindAttendance(ctx, model.AttendanceFilter{
		LessonIDs: []int64{lessonID},
		From:      occ.Start,
		To:        occ.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	marks := make([]*model.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.OccurrenceID == occ.ID {
			marks = append(marks, r)
		}
	}

	return &RegisterEntry{
		Lesson:     lesson,
		Occurrence: occ,
		Users:      users,
		Marks:      marks,
	}, nil
}

// TodayRegister занятия всех уроков за день day, по возрастанию начала
func (s *AttendanceService) TodayRegister(ctx context.Context, day time.Time) ([]RegisterEntry, error) {
	exp := s.reconciler.Expander()
	from, to := exp.StartOfDay(day), exp.EndOfDay(day)

	lessons, err := s.store.ListLessons(ctx, model.LessonFilter{})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	// урок с неверным правилом журнала не получает; ExpandLessons пишет его в лог
	expanded, _ := s.reconciler.ExpandLessons(lessons, from, to)

	occs, err := s.reconciler.Persisted(ctx, lessonIDs(lessons), expanded, from, to)
	if err != nil {
		return nil, err
	}
	if len(occs) == 0 {
		return []RegisterEntry{}, nil
	}

	records, err := s.store.FindAttendance(ctx, model.AttendanceFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	groups := reconciler.GroupJoin(occs, records, reconciler.AttendanceKey, reconciler.IDKey)

	byID := lessonsByID(lessons)
	users := make(map[int64][]*model.User)

	entries := make([]RegisterEntry, 0, len(groups))
	for _, g := range groups {
		lessonID := g.Occurrence.LessonID
		if _, ok := users[lessonID]; !ok {
			enrolled, err := s.store.ListEnrolledUsers(ctx, lessonID)
			if err != nil {
				return nil, fmt.Errorf("list enrolled users: %w", err)
			}
			users[lessonID] = enrolled
		}

		entries = append(entries, RegisterEntry{
			Lesson:     byID[lessonID],
			Occurrence: g.Occurrence,
			Users:      users[lessonID],
			Marks:      g.Records,
		})
	}

	return entries, nil
}

// History посещаемость пользователя по его урокам в окне [from, to]
func (s *AttendanceService) History(ctx context.Context, userID uuid.UUID, from, to time.Time) (*History, error) {
	lessons, err := s.store.ListLessons(ctx, model.LessonFilter{Scoped: true, EnrolledUserIDs: []uuid.UUID{userID}})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	expanded, failures := s.reconciler.ExpandLessons(lessons, from, to)

	// отметки есть только у сохранённых занятий, включая те, что развёртка уже не даёт
	occs, err := s.reconciler.Persisted(ctx, lessonIDs(lessons), expanded, from, to)
	if err != nil {
		return nil, err
	}

	rows, err := s.reconciler.AttendanceFor(ctx, occs, model.AttendanceFilter{
		UserIDs: []uuid.UUID{userID},
		From:    from,
		To:      to,
	}, reconciler.JoinInner)
	if err != nil {
		return nil, err
	}

	rows = reconciler.SelectRows(s.reconciler, rows, reconciler.Options{Order: reconciler.Descending})
	byID := lessonsByID(lessons)

	h := &History{
		Entries:  make([]HistoryEntry, 0, len(rows)),
		Summary:  reconciler.SummarizeAttendance(rows),
		Failures: failures,
	}
	for _, row := range rows {
		h.Entries = append(h.Entries, HistoryEntry{
			Lesson:     byID[row.Occurrence.LessonID],
			Occurrence: row.Occurrence,
			Present:    row.Record.Present,
		})
	}

	s.logger.Debug("Attendance history built",
		zap.String("user_id", userID.String()),
		zap.Int("sessions", h.Summary.Recorded),
		zap.Int("rate", h.Summary.Rate))

	return h, nil
}

// WeekdaySummary посещаемость по дням за последние days будних дней до now (сам день now не входит),
// от старых к новым. Дни без отметок возвращаются с нулями.
func (s *AttendanceService) WeekdaySummary(ctx context.Context, userID uuid.UUID, now time.Time, days int) ([]DaySummary, error) {
	if days <= 0 {
		return []DaySummary{}, nil
	}

	exp := s.reconciler.Expander()

	result := make([]DaySummary, days)
	day := exp.StartOfDay(now)
	for i := days - 1; i >= 0; {
		day = exp.StartOfDay(day.AddDate(0, 0, -1))
		if !exp.IsWeekday(day) {
			continue
		}
		result[i] = DaySummary{Day: day}
		i--
	}

	records, err := s.store.FindAttendance(ctx, model.AttendanceFilter{
		UserIDs: []uuid.UUID{userID},
		From:    result[0].Day,
		To:      exp.EndOfDay(result[days-1].Day),
	})
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}

	const dayLayout = "2006-01-02"
	index := make(map[string]int, days)
	for i, d := range result {
		index[d.Day.Format(dayLayout)] = i
	}
	for _, r := range records {
		i, ok := index[exp.StartOfDay(r.Date).Format(dayLayout)]
		if !ok {
			continue
		}
		result[i].Total++
		if r.Present {
			result[i].Present++
		}
	}
	for i := range result {
		result[i].Rate = reconciler.Rate(result[i].Present, result[i].Total)
	}

	return result, nil
}
