package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestStore подключается к TEST_DB_DSN; без него тесты Postgres пропускаются
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := app.NewMigrator(db, app.DriverPostgres, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, migrator.Run(ctx))

	_, err = pool.Exec(ctx, `TRUNCATE users, lessons RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return NewStore(pool, 5*time.Second)
}

func TestStore_UpsertOccurrenceConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lesson := &model.Lesson{
		Title: "Chemistry",
		Start: time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateLesson(ctx, lesson))

	const workers = 8
	ids := make([]int64, workers)
	created := make([]bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, ok, err := s.UpsertOccurrence(ctx, lesson.ID, lesson.Start, lesson.End)
			assert.NoError(t, err)
			ids[i] = id
			created[i] = ok
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)

	occs, err := s.ListOccurrences(ctx, lesson.ID, lesson.Start, lesson.Start)
	require.NoError(t, err)
	assert.Len(t, occs, 1)
}

func TestStore_AttendanceCopiesOccurrence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lesson := &model.Lesson{
		Title: "Biology",
		Start: time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateLesson(ctx, lesson))
	student := &model.User{Forename: "Alan", Role: model.RoleStudent}
	require.NoError(t, s.CreateUser(ctx, student))

	occID, _, err := s.UpsertOccurrence(ctx, lesson.ID, lesson.Start, lesson.End)
	require.NoError(t, err)

	rec, err := s.UpsertAttendance(ctx, occID, student.ID, true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, lesson.ID, rec.LessonID)
	assert.True(t, rec.Date.Equal(lesson.Start))

	records, err := s.FindAttendance(ctx, model.AttendanceFilter{UserIDs: []uuid.UUID{student.ID}})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	missing, err := s.UpsertAttendance(ctx, occID+1000, student.ID, true)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ErrorsAreStorageFailures(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindLesson(ctx, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsStorageFailure(err))
}
