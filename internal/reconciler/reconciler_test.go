package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/recurrence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	mu          sync.Mutex
	lessons     map[int64]*model.Lesson
	occurrences map[string]int64
	rows        []model.Occurrence
	attendance  []*model.AttendanceRecord
	files       []*model.FileRecord
	homework    []*model.HomeworkRecord
	nextID      int64
	upsertErr   error
	upserts     int
}

func newMemStore(lessons ...*model.Lesson) *memStore {
	s := &memStore{
		lessons:     make(map[int64]*model.Lesson),
		occurrences: make(map[string]int64),
	}
	for _, l := range lessons {
		s.lessons[l.ID] = l
	}
	return s
}

func (s *memStore) FindLesson(_ context.Context, id int64) (*model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lessons[id], nil
}

func (s *memStore) UpsertOccurrence(_ context.Context, lessonID int64, start, end time.Time) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return 0, false, s.upsertErr
	}
	key := model.OccurrenceKey(lessonID, start)
	if id, ok := s.occurrences[key]; ok {
		return id, false, nil
	}
	s.nextID++
	s.occurrences[key] = s.nextID
	s.rows = append(s.rows, model.Occurrence{ID: s.nextID, LessonID: lessonID, Start: start.UTC(), End: end.UTC()})
	return s.nextID, true, nil
}

func (s *memStore) ListOccurrences(_ context.Context, lessonID int64, from, to time.Time) ([]model.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Occurrence
	for _, o := range s.rows {
		if o.LessonID == lessonID && !o.Start.Before(from) && !o.Start.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) FindAttendance(_ context.Context, filter model.AttendanceFilter) ([]*model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AttendanceRecord
	for _, r := range s.attendance {
		if len(filter.UserIDs) > 0 && !containsUUID(filter.UserIDs, r.UserID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) FindFiles(_ context.Context, occurrenceID int64) ([]*model.FileRecord, error) {
	var out []*model.FileRecord
	for _, f := range s.files {
		if f.OccurrenceID == occurrenceID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memStore) FindHomework(_ context.Context, occurrenceID int64) ([]*model.HomeworkRecord, error) {
	var out []*model.HomeworkRecord
	for _, h := range s.homework {
		if h.OccurrenceID == occurrenceID {
			out = append(out, h)
		}
	}
	return out, nil
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

// weeklyJanuary урок по понедельникам 09:00-10:00 с 6 по 27 января 2025
func weeklyJanuary(id int64) *model.Lesson {
	return &model.Lesson{
		ID:    id,
		Title: "Maths",
		Start: at(2025, time.January, 6, 9),
		End:   at(2025, time.January, 6, 10),
		RRule: strPtr("FREQ=WEEKLY;INTERVAL=1;UNTIL=20250127T000000Z"),
	}
}

func newTestReconciler(t *testing.T, store Store) *Reconciler {
	t.Helper()
	return NewReconciler(store, recurrence.NewExpander(time.UTC), zaptest.NewLogger(t))
}

func TestAttendanceHistory_InnerJoinRate(t *testing.T) {
	ctx := context.Background()
	lesson := weeklyJanuary(1)
	student := uuid.New()
	store := newMemStore(lesson)
	r := newTestReconciler(t, store)

	from, to := at(2025, time.January, 1, 0), at(2025, time.February, 1, 0)
	res, err := r.MaterializeLesson(ctx, lesson.ID, from, to)
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 4)

	store.attendance = []*model.AttendanceRecord{
		{OccurrenceID: res.Occurrences[0].ID, LessonID: 1, UserID: student, Date: at(2025, time.January, 6, 9), Present: true},
		{OccurrenceID: res.Occurrences[2].ID, LessonID: 1, UserID: student, Date: at(2025, time.January, 20, 9), Present: false},
	}

	expanded, err := r.Expand(lesson, from, to)
	require.NoError(t, err)
	occs, err := r.Persisted(ctx, []int64{lesson.ID}, expanded, from, to)
	require.NoError(t, err)
	require.Len(t, occs, 4)
	for _, o := range occs {
		assert.True(t, o.IsMaterialized())
	}

	rows, err := r.AttendanceFor(ctx, occs, model.AttendanceFilter{UserIDs: []uuid.UUID{student}}, JoinInner)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.Found)
		assert.Equal(t, row.Occurrence.ID, row.Record.OccurrenceID)
	}

	summary := SummarizeAttendance(rows)
	assert.Equal(t, AttendanceSummary{Recorded: 2, Present: 1, Rate: 50}, summary)

	history := SelectRows(r, rows, Options{Order: Descending})
	assert.True(t, history[0].Occurrence.Start.Equal(at(2025, time.January, 20, 9)))
	assert.True(t, history[1].Occurrence.Start.Equal(at(2025, time.January, 6, 9)))
}

func TestPersisted_KeepsStoredOccurrenceOutsideExpansion(t *testing.T) {
	ctx := context.Background()
	lesson := weeklyJanuary(1)
	student := uuid.New()
	store := newMemStore(lesson)
	r := newTestReconciler(t, store)

	// занятие сохранено на час раньше, чем его сейчас даёт развёртка
	shiftedID, _, err := store.UpsertOccurrence(ctx, 1, at(2025, time.January, 13, 8), at(2025, time.January, 13, 9))
	require.NoError(t, err)
	regularID, _, err := store.UpsertOccurrence(ctx, 1, at(2025, time.January, 20, 9), at(2025, time.January, 20, 10))
	require.NoError(t, err)
	store.attendance = []*model.AttendanceRecord{
		{OccurrenceID: shiftedID, LessonID: 1, UserID: student, Date: at(2025, time.January, 13, 8), Present: true},
	}

	from, to := at(2025, time.January, 1, 0), at(2025, time.February, 1, 0)
	expanded, err := r.Expand(lesson, from, to)
	require.NoError(t, err)

	occs, err := r.Persisted(ctx, []int64{1}, expanded, from, to)
	require.NoError(t, err)
	require.Len(t, occs, 5)

	ids := map[int64]int64{}
	for i, o := range occs {
		ids[o.Start.Unix()] = o.ID
		if i > 0 {
			assert.False(t, o.Start.Before(occs[i-1].Start), "ascending")
		}
	}
	assert.Equal(t, shiftedID, ids[at(2025, time.January, 13, 8).Unix()])
	assert.Contains(t, ids, at(2025, time.January, 13, 9).Unix())
	assert.Equal(t, int64(0), ids[at(2025, time.January, 13, 9).Unix()])
	assert.Equal(t, regularID, ids[at(2025, time.January, 20, 9).Unix()])

	rows, err := r.AttendanceFor(ctx, occs, model.AttendanceFilter{UserIDs: []uuid.UUID{student}}, JoinInner)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, shiftedID, rows[0].Occurrence.ID)
	assert.True(t, rows[0].Record.Present)
}

func TestReconcile_JoinExclusivity(t *testing.T) {
	t.Parallel()

	occs := []model.Occurrence{
		{ID: 1, LessonID: 1, Start: at(2025, time.January, 6, 9)},
		{ID: 2, LessonID: 1, Start: at(2025, time.January, 13, 9)},
		// несохранённое занятие записей не получает
		{LessonID: 2, Start: at(2025, time.January, 13, 9)},
	}
	records := []*model.AttendanceRecord{
		{OccurrenceID: 2, LessonID: 1, Date: at(2025, time.January, 13, 9), Present: true},
		// совпадение урока и времени без ID занятия не считается
		{OccurrenceID: 7, LessonID: 1, Date: at(2025, time.January, 6, 9), Present: true},
		{LessonID: 2, Date: at(2025, time.January, 13, 9), Present: true},
	}

	left := Reconcile(occs, records, AttendanceKey, nil, JoinLeft)
	require.Len(t, left, len(occs))
	for i, row := range left {
		assert.Equal(t, occs[i], row.Occurrence)
	}
	assert.False(t, left[0].Found)
	assert.Nil(t, left[0].Record)
	assert.True(t, left[1].Found)
	assert.False(t, left[2].Found)

	inner := Reconcile(occs, records, AttendanceKey, nil, JoinInner)
	require.Len(t, inner, 1)
	assert.True(t, inner[0].Found)
	assert.Equal(t, occs[1], inner[0].Occurrence)
}

func TestReconcile_LastRecordWins(t *testing.T) {
	t.Parallel()

	occs := []model.Occurrence{{ID: 5, LessonID: 1, Start: at(2025, time.January, 6, 9)}}
	records := []*model.AttendanceRecord{
		{ID: 1, OccurrenceID: 5, LessonID: 1, Date: at(2025, time.January, 6, 9), Present: false},
		{ID: 2, OccurrenceID: 5, LessonID: 1, Date: at(2025, time.January, 6, 9), Present: true},
	}

	rows := Reconcile(occs, records, AttendanceKey, nil, JoinInner)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Record.ID)
}

func TestGroupJoin_CollectsEveryRecord(t *testing.T) {
	t.Parallel()

	occs := []model.Occurrence{
		{ID: 10, LessonID: 1, Start: at(2025, time.January, 6, 9)},
		{ID: 11, LessonID: 1, Start: at(2025, time.January, 13, 9)},
	}
	files := []*model.FileRecord{
		{ID: 1, OccurrenceID: 10, Name: "a.pdf"},
		{ID: 2, OccurrenceID: 99, Name: "stray.pdf"},
		{ID: 3, OccurrenceID: 10, Name: "b.pdf"},
	}

	groups := GroupJoin(occs, files, FileKey, IDKey)
	require.Len(t, groups, 2)
	require.Len(t, groups[0].Records, 2)
	assert.Equal(t, "a.pdf", groups[0].Records[0].Name)
	assert.Equal(t, "b.pdf", groups[0].Records[1].Name)
	assert.Empty(t, groups[1].Records)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	r := newTestReconciler(t, newMemStore())
	// 10 января 2025 - пятница
	fri := model.Occurrence{LessonID: 1, Start: at(2025, time.January, 10, 9)}
	sat := model.Occurrence{LessonID: 2, Start: at(2025, time.January, 11, 9)}
	sun := model.Occurrence{LessonID: 3, Start: at(2025, time.January, 12, 9)}
	mon := model.Occurrence{LessonID: 4, Start: at(2025, time.January, 13, 9)}
	tue := model.Occurrence{LessonID: 5, Start: at(2025, time.January, 14, 9)}
	occs := []model.Occurrence{tue, sat, mon, fri, sun}

	tests := []struct {
		name string
		opts Options
		want []model.Occurrence
	}{
		{name: "ascending", opts: Options{}, want: []model.Occurrence{fri, sat, sun, mon, tue}},
		{name: "descending", opts: Options{Order: Descending}, want: []model.Occurrence{tue, mon, sun, sat, fri}},
		{name: "weekdays only", opts: Options{WeekdaysOnly: true}, want: []model.Occurrence{fri, mon, tue}},
		{name: "filter then slice", opts: Options{WeekdaysOnly: true, Limit: 2}, want: []model.Occurrence{fri, mon}},
		{name: "limit larger than list", opts: Options{Limit: 10}, want: []model.Occurrence{fri, sat, sun, mon, tue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Select(occs, tt.opts))
		})
	}

	assert.Equal(t, []model.Occurrence{tue, sat, mon, fri, sun}, occs, "input must not be reordered")
}

func TestSelect_SaturdayMonthlyLessonFilteredOut(t *testing.T) {
	t.Parallel()

	// 4 января 2025 - суббота
	lesson := &model.Lesson{
		ID:    7,
		Start: at(2025, time.January, 4, 11),
		End:   at(2025, time.January, 4, 12),
		RRule: strPtr("FREQ=MONTHLY"),
	}
	r := newTestReconciler(t, newMemStore(lesson))

	occs, err := r.Expand(lesson, at(2025, time.January, 1, 0), at(2025, time.January, 31, 0))
	require.NoError(t, err)
	require.Len(t, occs, 1)

	got := r.Select(occs, Options{WeekdaysOnly: true})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExpandLessons_SkipsInvalidLesson(t *testing.T) {
	t.Parallel()

	good := weeklyJanuary(1)
	bad := &model.Lesson{ID: 2, Start: good.Start, End: good.End, RRule: strPtr("FREQ=SOMETIMES")}
	single := &model.Lesson{ID: 3, Start: at(2025, time.January, 8, 14), End: at(2025, time.January, 8, 15)}
	r := newTestReconciler(t, newMemStore())

	occs, failures := r.ExpandLessons([]*model.Lesson{bad, good, single}, at(2025, time.January, 1, 0), at(2025, time.February, 1, 0))

	require.Len(t, failures, 1)
	assert.Equal(t, int64(2), failures[0].LessonID)
	assert.True(t, apperrors.IsInvalidRecurrence(failures[0].Err))

	require.Len(t, occs, 5)
	assert.Equal(t, int64(1), occs[0].LessonID)
	assert.Equal(t, int64(3), occs[1].LessonID)
	for i := 1; i < len(occs); i++ {
		assert.False(t, occs[i].Start.Before(occs[i-1].Start))
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	t.Parallel()

	lesson := weeklyJanuary(1)
	store := newMemStore(lesson)
	r := newTestReconciler(t, store)
	ctx := context.Background()

	first, err := r.MaterializeLesson(ctx, 1, at(2025, time.January, 1, 0), at(2025, time.January, 21, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	require.Len(t, first.Occurrences, 3)
	for _, occ := range first.Occurrences {
		assert.True(t, occ.IsMaterialized())
	}

	second, err := r.MaterializeLesson(ctx, 1, at(2025, time.January, 10, 0), at(2025, time.February, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Created)
	require.Len(t, second.Occurrences, 3)
	assert.Equal(t, first.Occurrences[1].ID, second.Occurrences[0].ID)
	assert.Equal(t, first.Occurrences[2].ID, second.Occurrences[1].ID)

	rowsAfterSecond := len(store.occurrences)
	_, err = r.MaterializeLesson(ctx, 1, at(2025, time.January, 1, 0), at(2025, time.February, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, rowsAfterSecond)
	assert.Len(t, store.occurrences, rowsAfterSecond)
}

func TestMaterializeLesson_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	from, to := at(2025, time.January, 1, 0), at(2025, time.February, 1, 0)

	t.Run("missing lesson", func(t *testing.T) {
		r := newTestReconciler(t, newMemStore())
		_, err := r.MaterializeLesson(ctx, 42, from, to)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("storage failure is not retried", func(t *testing.T) {
		store := newMemStore(weeklyJanuary(1))
		store.upsertErr = context.DeadlineExceeded
		r := newTestReconciler(t, store)

		_, err := r.MaterializeLesson(ctx, 1, from, to)
		require.Error(t, err)
		assert.True(t, apperrors.IsStorageFailure(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, store.upserts)
	})

	t.Run("invalid recurrence", func(t *testing.T) {
		lesson := weeklyJanuary(1)
		lesson.RRule = strPtr("FREQ=WEEKLY;COUNT=3")
		r := newTestReconciler(t, newMemStore(lesson))

		_, err := r.MaterializeLesson(ctx, 1, from, to)
		assert.True(t, apperrors.IsInvalidRecurrence(err))
	})
}

func TestMaterializeAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	from, to := at(2025, time.January, 1, 0), at(2025, time.February, 1, 0)

	lessons := []*model.Lesson{
		weeklyJanuary(1),
		{ID: 2, Start: at(2025, time.January, 6, 9), End: at(2025, time.January, 6, 10), RRule: strPtr("not a rule")},
		{ID: 3, Start: at(2025, time.January, 15, 12), End: at(2025, time.January, 15, 13)},
		weeklyJanuary(4),
	}

	t.Run("skips invalid lessons", func(t *testing.T) {
		store := newMemStore(lessons...)
		r := newTestReconciler(t, store).WithWorkers(2)

		res, err := r.MaterializeAll(ctx, lessons, from, to)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Lessons)
		assert.Equal(t, 9, res.Created)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, int64(2), res.Failures[0].LessonID)
		assert.Len(t, store.occurrences, 9)

		again, err := r.MaterializeAll(ctx, lessons, from, to)
		require.NoError(t, err)
		assert.Zero(t, again.Created)
		assert.Len(t, store.occurrences, 9)
	})

	t.Run("aborts on storage failure", func(t *testing.T) {
		store := newMemStore(lessons...)
		store.upsertErr = errors.New("connection refused")
		r := newTestReconciler(t, store)

		_, err := r.MaterializeAll(ctx, lessons, from, to)
		require.Error(t, err)
		assert.True(t, apperrors.IsStorageFailure(err))
	})
}

func TestMaterialsFor(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.files = []*model.FileRecord{{ID: 1, OccurrenceID: 5, Name: "slides.pdf"}}
	store.homework = []*model.HomeworkRecord{
		{ID: 1, OccurrenceID: 5, Title: "Ex. 1"},
		{ID: 2, OccurrenceID: 6, Title: "Ex. 2"},
	}
	r := newTestReconciler(t, store)

	occs := []model.Occurrence{
		{ID: 5, LessonID: 1, Start: at(2025, time.January, 6, 9)},
		{LessonID: 1, Start: at(2025, time.January, 13, 9)},
		{ID: 6, LessonID: 1, Start: at(2025, time.January, 20, 9)},
	}

	got, err := r.MaterialsFor(context.Background(), occs)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Len(t, got[0].Files, 1)
	assert.Len(t, got[0].Homework, 1)
	assert.Empty(t, got[1].Files)
	assert.Empty(t, got[1].Homework)
	assert.Empty(t, got[2].Files)
	require.Len(t, got[2].Homework, 1)
	assert.Equal(t, "Ex. 2", got[2].Homework[0].Title)
}

func TestModeForRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role    model.Role
		want    ReportMode
		wantErr bool
	}{
		{role: model.RoleAdmin, want: ModeAll},
		{role: model.RoleTeacher, want: ModeEnrolledOnly},
		{role: model.RoleStudent, want: ModeEnrolledOnly},
		{role: model.RoleGuardian, want: ModeGuardianScoped},
		{role: "JANITOR", want: ModeEnrolledOnly, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := ModeForRole(tt.role)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Rate(0, 0))
	assert.Equal(t, 50, Rate(1, 2))
	assert.Equal(t, 67, Rate(2, 3))
	assert.Equal(t, 33, Rate(1, 3))
	assert.Equal(t, 100, Rate(4, 4))
}
