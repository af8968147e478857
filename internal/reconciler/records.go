package reconciler

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"go.uber.org/zap"
)

// Materials занятие с файлами и домашними заданиями
type Materials struct {
	Occurrence model.Occurrence
	Files      []*model.FileRecord
	Homework   []*model.HomeworkRecord
}

// Persisted подставляет ID сохранённых занятий уроков lessonIDs в окне [from, to] в развёрнутые occs.
// Совпадение ищется по ограничению уникальности (lesson_id, start). Сохранённые занятия,
// которых нет среди occs (например, записанные при другой таймзоне), добавляются как есть,
// чтобы их записи не терялись. Результат по возрастанию начала.
func (r *Reconciler) Persisted(ctx context.Context, lessonIDs []int64, occs []model.Occurrence, from, to time.Time) ([]model.Occurrence, error) {
	stored := make(map[string]model.Occurrence)
	for _, id := range lessonIDs {
		rows, err := r.store.ListOccurrences(ctx, id, from, to)
		if err != nil {
			return nil, apperrors.StorageFailure("list occurrences", err)
		}
		for _, row := range rows {
			stored[row.Key()] = row
		}
	}

	result := make([]model.Occurrence, 0, len(occs)+len(stored))
	for _, occ := range occs {
		if row, ok := stored[occ.Key()]; ok {
			occ.ID = row.ID
			delete(stored, occ.Key())
		}
		result = append(result, occ)
	}
	for _, row := range stored {
		r.logger.Debug("Persisted occurrence is not in expansion",
			zap.Int64("lesson_id", row.LessonID),
			zap.Int64("occurrence_id", row.ID),
			zap.Time("start", row.Start))
		result = append(result, row)
	}

	SortOccurrences(result, Ascending)
	return result, nil
}

// AttendanceFor загружает отметки по filter и сопоставляет их с сохранёнными занятиями по ID.
// Несохранённые занятия отметок иметь не могут.
func (r *Reconciler) AttendanceFor(ctx context.Context, occs []model.Occurrence, filter model.AttendanceFilter, mode JoinMode) ([]Row[*model.AttendanceRecord], error) {
	records, err := r.store.FindAttendance(ctx, filter)
	if err != nil {
		return nil, apperrors.StorageFailure("find attendance", err)
	}
	return Reconcile(occs, records, AttendanceKey, IDKey, mode), nil
}

// MaterialsFor загружает файлы и домашние задания сохранённых занятий.
// У несохранённых занятий (ID == 0) материалов быть не может, они возвращаются пустыми.
func (r *Reconciler) MaterialsFor(ctx context.Context, occs []model.Occurrence) ([]Materials, error) {
	var (
		files    []*model.FileRecord
		homework []*model.HomeworkRecord
	)

	for _, occ := range occs {
		if !occ.IsMaterialized() {
			continue
		}

		f, err := r.store.FindFiles(ctx, occ.ID)
		if err != nil {
			return nil, apperrors.StorageFailure("find files", err)
		}
		files = append(files, f...)

		h, err := r.store.FindHomework(ctx, occ.ID)
		if err != nil {
			return nil, apperrors.StorageFailure("find homework", err)
		}
		homework = append(homework, h...)
	}

	fileGroups := GroupJoin(occs, files, FileKey, IDKey)
	homeworkGroups := GroupJoin(occs, homework, HomeworkKey, IDKey)

	result := make([]Materials, 0, len(occs))
	for i, occ := range occs {
		m := Materials{Occurrence: occ}
		if occ.IsMaterialized() {
			m.Files = fileGroups[i].Records
			m.Homework = homeworkGroups[i].Records
		}
		result = append(result, m)
	}
	return result, nil
}
