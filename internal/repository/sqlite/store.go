package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store встроенное хранилище на SQLite с той же семантикой, что и Postgres.
// Время хранится в наносекундах Unix (UTC).
type Store struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// DSN строит строку подключения к файлу path с внешними ключами и ожиданием блокировки
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open открывает базу. Одно соединение: SQLite всё равно сериализует запись.
func Open(ctx context.Context, dsn string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db, timeout: timeout, now: time.Now}, nil
}

// DB соединение для мигратора
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func nanos(t time.Time) int64 {
	return t.UTC().Truncate(time.Second).UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// --- уроки

const lessonColumns = "l.id, l.title, l.start_at, l.end_at, l.rrule, l.created_at"

func scanLesson(row interface{ Scan(...any) error }) (*model.Lesson, error) {
	var (
		lesson              model.Lesson
		start, end, created int64
		rrule               sql.NullString
	)
	if err := row.Scan(&lesson.ID, &lesson.Title, &start, &end, &rrule, &created); err != nil {
		return nil, err
	}
	lesson.Start = fromNanos(start)
	lesson.End = fromNanos(end)
	lesson.CreatedAt = fromNanos(created)
	if rrule.Valid {
		lesson.RRule = &rrule.String
	}
	return &lesson, nil
}

func (s *Store) FindLesson(ctx context.Context, id int64) (*model.Lesson, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lesson, err := scanLesson(s.db.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.StorageFailure("find lesson", err)
	}
	return lesson, nil
}

func (s *Store) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lesson.CreatedAt = s.now().UTC()
	var rrule sql.NullString
	if lesson.RRule != nil {
		rrule = sql.NullString{String: *lesson.RRule, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lessons (title, start_at, end_at, rrule, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		lesson.Title, nanos(lesson.Start), nanos(lesson.End), rrule, lesson.CreatedAt.UnixNano(),
	).Scan(&lesson.ID)
	if err != nil {
		return apperrors.StorageFailure("create lesson", err)
	}
	return nil
}

func (s *Store) ListLessons(ctx context.Context, filter model.LessonFilter) ([]*model.Lesson, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := squirrel.Select(lessonColumns).From("lessons l")
	if filter.Scoped {
		subSQL, subArgs, err := squirrel.Select("e.lesson_id").
			From("enrollments e").
			Where(squirrel.Eq{"e.user_id": filter.EnrolledUserIDs}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build enrollment subquery: %w", err)
		}
		q = q.Where("l.id IN ("+subSQL+")", subArgs...)
	}

	query, args, err := q.OrderBy("l.start_at", "l.id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lessons query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageFailure("list lessons", err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, apperrors.StorageFailure("scan lesson", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageFailure("iterate lessons", err)
	}
	return lessons, nil
}

func (s *Store) DeleteLesson(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id); err != nil {
		return apperrors.StorageFailure("delete lesson", err)
	}
	return nil
}

// --- занятия

func scanOccurrence(row interface{ Scan(...any) error }) (model.Occurrence, error) {
	var (
		occ        model.Occurrence
		start, end int64
	)
	if err := row.Scan(&occ.ID, &occ.LessonID, &start, &end); err != nil {
		return occ, err
	}
	occ.Start = fromNanos(start)
	occ.End = fromNanos(end)
	return occ, nil
}

// UpsertOccurrence вставляет занятие или возвращает существующее по (lesson_id, start_at)
func (s *Store) UpsertOccurrence(ctx context.Context, lessonID int64, start, end time.Time) (int64, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lesson_occurrences (lesson_id, start_at, end_at)
		VALUES (?, ?, ?)
		ON CONFLICT (lesson_id, start_at) DO NOTHING
		RETURNING id`,
		lessonID, nanos(start), nanos(end),
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, apperrors.StorageFailure("insert occurrence", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM lesson_occurrences WHERE lesson_id = ? AND start_at = ?`,
		lessonID, nanos(start),
	).Scan(&id)
	if err != nil {
		return 0, false, apperrors.StorageFailure("get existing occurrence", err)
	}
	return id, false, nil
}

func (s *Store) GetOccurrence(ctx context.Context, id int64) (*model.Occurrence, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	occ, err := scanOccurrence(s.db.QueryRowContext(ctx,
		`SELECT id, lesson_id, start_at, end_at FROM lesson_occurrences WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.StorageFailure("get occurrence", err)
	}
	return &occ, nil
}

func (s *Store) ListOccurrences(ctx context.Context, lessonID int64, from, to time.Time) ([]model.Occurrence, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lesson_id, start_at, end_at
		FROM lesson_occurrences
		WHERE lesson_id = ? AND start_at >= ? AND start_at <= ?
		ORDER BY start_at`,
		lessonID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, apperrors.StorageFailure("list occurrences", err)
	}
	defer rows.Close()

	var occs []model.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, apperrors.StorageFailure("scan occurrence", err)
		}
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageFailure("iterate occurrences", err)
	}
	return occs, nil
}

// --- посещаемость

const attendanceColumns = "id, occurrence_id, lesson_id, user_id, date, present, created_at, updated_at"

func scanAttendance(row interface{ Scan(...any) error }) (*model.AttendanceRecord, error) {
	var (
		rec                    model.AttendanceRecord
		date, created, updated int64
	)
	err := row.Scan(&rec.ID, &rec.OccurrenceID, &rec.LessonID, &rec.UserID, &date, &rec.Present, &created, &updated)
	if err != nil {
		return nil, err
	}
	rec.Date = fromNanos(date)
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	return &rec, nil
}

func (s *Store) FindAttendance(ctx context.Context, filter model.AttendanceFilter) ([]*model.AttendanceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := squirrel.Select(attendanceColumns).From("attendance")
	if len(filter.UserIDs) > 0 {
		q = q.Where(squirrel.Eq{"user_id": filter.UserIDs})
	}
	if len(filter.LessonIDs) > 0 {
		q = q.Where(squirrel.Eq{"lesson_id": filter.LessonIDs})
	}
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"date": filter.From.UTC().UnixNano()})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"date": filter.To.UTC().UnixNano()})
	}

	query, args, err := q.OrderBy("date", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find attendance query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageFailure("find attendance", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, apperrors.StorageFailure("scan attendance", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageFailure("iterate attendance", err)
	}
	return records, nil
}

// UpsertAttendance ставит отметку; lesson_id и date берутся из строки занятия.
// (nil, nil), если занятия нет.
func (s *Store) UpsertAttendance(ctx context.Context, occurrenceID int64, userID uuid.UUID, present bool) (*model.AttendanceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC().UnixNano()
	rec, err := scanAttendance(s.db.QueryRowContext(ctx, `
		INSERT INTO attendance (occurrence_id, lesson_id, user_id, date, present, created_at, updated_at)
		SELECT o.id, o.lesson_id, ?, o.start_at, ?, ?, ?
		FROM lesson_occurrences o
		WHERE o.id = ?
		ON CONFLICT (occurrence_id, user_id)
		DO UPDATE SET present = excluded.present, updated_at = excluded.updated_at
		RETURNING `+attendanceColumns,
		userID, present, now, now, occurrenceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.StorageFailure("upsert attendance", err)
	}
	return rec, nil
}

// --- файлы и домашние задания

func (s *Store) CreateFile(ctx context.Context, f *model.FileRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	f.CreatedAt = s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO occurrence_files (occurrence_id, name, url, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		f.OccurrenceID, f.Name, f.URL, nullUUID(f.UploadedBy), f.CreatedAt.UnixNano(),
	).Scan(&f.ID)
	if err != nil {
		return apperrors.StorageFailure("create file", err)
	}
	return nil
}

func (s *Store) FindFiles(ctx context.Context, occurrenceID int64) ([]*model.FileRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurrence_id, name, url, uploaded_by, created_at
		FROM occurrence_files
		WHERE occurrence_id = ?
		ORDER BY created_at, id`, occurrenceID)
	if err != nil {
		return nil, apperrors.StorageFailure("find files", err)
	}
	defer rows.Close()

	var files []*model.FileRecord
	for rows.Next() {
		var (
			f        model.FileRecord
			uploaded uuid.NullUUID
			created  int64
		)
		if err := rows.Scan(&f.ID, &f.OccurrenceID, &f.Name, &f.URL, &uploaded, &created); err != nil {
			return nil, apperrors.StorageFailure("scan file", err)
		}
		f.UploadedBy = uuidPtr(uploaded)
		f.CreatedAt = fromNanos(created)
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageFailure("iterate files", err)
	}
	return files, nil
}

func (s *Store) CreateHomework(ctx context.Context, h *model.HomeworkRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var due sql.NullInt64
	if h.DueAt != nil {
		due = sql.NullInt64{Int64: h.DueAt.UTC().UnixNano(), Valid: true}
	}

	h.CreatedAt = s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO homework (occurrence_id, title, description, due_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		h.OccurrenceID, h.Title, h.Description, due, nullUUID(h.CreatedBy), h.CreatedAt.UnixNano(),
	).Scan(&h.ID)
	if err != nil {
		return apperrors.StorageFailure("create homework", err)
	}
	return nil
}

func (s *Store) FindHomework(ctx context.Context, occurrenceID int64) ([]*model.HomeworkRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurrence_id, title, description, due_at, created_by, created_at
		FROM homework
		WHERE occurrence_id = ?
		ORDER BY created_at, id`, occurrenceID)
	if err != nil {
		return nil, apperrors.StorageFailure("find homework", err)
	}
	defer rows.Close()

	var items []*model.HomeworkRecord
	for rows.Next() {
		var (
			h         model.HomeworkRecord
			due       sql.NullInt64
			createdBy uuid.NullUUID
			created   int64
		)
		if err := rows.Scan(&h.ID, &h.OccurrenceID, &h.Title, &h.Description, &due, &createdBy, &created); err != nil {
			return nil, apperrors.StorageFailure("scan homework", err)
		}
		if due.Valid {
			t := fromNanos(due.Int64)
			h.DueAt = &t
		}
		h.CreatedBy = uuidPtr(createdBy)
		h.CreatedAt = fromNanos(created)
		items = append(items, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageFailure("iterate homework", err)
	}
	return items, nil
}

// --- записи на уроки

func (s *Store) Enroll(ctx context.Context, userID uuid.UUID, lessonID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, lesson_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, lesson_id) DO NOTHING`,
		userID, lessonID, s.now().UTC().UnixNano())
	if err != nil {
		return apperrors.StorageFailure("enroll", err)
	}
	return nil
}

func (s *Store) Unenroll(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE user_id = ? AND lesson_id = ?`, userID, lessonID)
	if err != nil {
		return false, apperrors.StorageFailure("unenroll", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.StorageFailure("unenroll", err)
	}
	return n > 0, nil
}

func (s *Store) CountEnrollments(ctx context.Context, lessonID int64) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments WHERE lesson_id = ?`, lessonID).Scan(&n)
	if err != nil {
		return 0, apperrors.StorageFailure("count enrollments", err)
	}
	return n, nil
}

func (s *Store) ListEnrolledUsers(ctx context.Context, lessonID int64) ([]*model.User, error) {
	return s.queryUsers(ctx, "list enrolled users", `
		SELECT u.id, u.telegram_id, u.forename, u.surname, u.role, u.created_at
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.lesson_id = ?
		ORDER BY u.surname, u.forename, u.id`, lessonID)
}

// --- пользователи

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		user     model.User
		telegram sql.NullInt64
		created  int64
	)
	if err := row.Scan(&user.ID, &telegram, &user.Forename, &user.Surname, &user.Role, &created); err != nil {
		return nil, err
	}
	if telegram.Valid {
		user.TelegramID = &telegram.Int64
	}
	user.CreatedAt = fromNanos(created)
	return &user, nil
}

func (s *Store) queryUsers(ctx context.Context, op, query string, args ...any) ([]*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageFailure(op, err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.StorageFailure(op, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageFailure(op, err)
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = s.now().UTC()

	var telegram sql.NullInt64
	if user.TelegramID != nil {
		telegram = sql.NullInt64{Int64: *user.TelegramID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, telegram_id, forename, surname, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, telegram, user.Forename, user.Surname, string(user.Role), user.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUserExists
		}
		return apperrors.StorageFailure("create user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.getUser(ctx, "get user", `WHERE id = ?`, id)
}

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.getUser(ctx, "get user by telegram id", `WHERE telegram_id = ?`, telegramID)
}

func (s *Store) getUser(ctx context.Context, op, where string, arg any) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, forename, surname, role, created_at FROM users `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.StorageFailure(op, err)
	}
	return user, nil
}

func (s *Store) LinkGuardian(ctx context.Context, guardianID, studentID uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guardians (guardian_id, student_id)
		VALUES (?, ?)
		ON CONFLICT (guardian_id, student_id) DO NOTHING`,
		guardianID, studentID)
	if err != nil {
		return apperrors.StorageFailure("link guardian", err)
	}
	return nil
}

func (s *Store) GuardianStudents(ctx context.Context, guardianID uuid.UUID) ([]*model.User, error) {
	return s.queryUsers(ctx, "guardian students", `
		SELECT u.id, u.telegram_id, u.forename, u.surname, u.role, u.created_at
		FROM guardians g
		JOIN users u ON u.id = g.student_id
		WHERE g.guardian_id = ?
		ORDER BY u.surname, u.forename, u.id`, guardianID)
}
