package reconciler

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

// Store хранилище, с которым работает Reconciler.
// Отсутствующий урок возвращается как (nil, nil).
type Store interface {
	FindLesson(ctx context.Context, id int64) (*model.Lesson, error)
	// UpsertOccurrence создаёт занятие (lessonID, start), если его ещё нет, и возвращает его ID.
	// created == false, если строка уже существовала.
	UpsertOccurrence(ctx context.Context, lessonID int64, start, end time.Time) (id int64, created bool, err error)
	// ListOccurrences сохранённые занятия урока с началом в [from, to], по возрастанию начала
	ListOccurrences(ctx context.Context, lessonID int64, from, to time.Time) ([]model.Occurrence, error)
	FindAttendance(ctx context.Context, filter model.AttendanceFilter) ([]*model.AttendanceRecord, error)
	FindFiles(ctx context.Context, occurrenceID int64) ([]*model.FileRecord, error)
	FindHomework(ctx context.Context, occurrenceID int64) ([]*model.HomeworkRecord, error)
}
