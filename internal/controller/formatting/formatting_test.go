package formatting

import (
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/controller/state"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPluralizeLessons(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{1, "занятие"},
		{2, "занятия"},
		{4, "занятия"},
		{5, "занятий"},
		{11, "занятий"},
		{12, "занятий"},
		{21, "занятие"},
		{22, "занятия"},
		{0, "занятий"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PluralizeLessons(tt.count), "count %d", tt.count)
	}
}

func TestFormatDateWithWeekday(t *testing.T) {
	assert.Equal(t, "06.01.2025 (Пн)", FormatDateWithWeekday(time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "04.01.2025 (Сб)", FormatDateWithWeekday(time.Date(2025, time.January, 4, 9, 0, 0, 0, time.UTC)))
}

func TestFormatUpcoming(t *testing.T) {
	lesson := &model.Lesson{ID: 1, Title: "Maths & <Physics>"}
	start := time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)

	text := FormatUpcoming([]service.LessonOccurrence{{
		Lesson:     lesson,
		Occurrence: model.Occurrence{LessonID: 1, Start: start, End: start.Add(time.Hour)},
	}}, time.UTC)

	assert.Contains(t, text, "Maths &amp; &lt;Physics&gt;")
	assert.Contains(t, text, "06.01.2025 (Пн) 09:00-10:00")

	assert.Equal(t, "📭 Ближайших занятий нет.", FormatUpcoming(nil, time.UTC))
}

func TestFormatUpcoming_UsesLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	start := time.Date(2025, time.January, 6, 21, 30, 0, 0, time.UTC)

	text := FormatUpcoming([]service.LessonOccurrence{{
		Lesson:     &model.Lesson{Title: "Late"},
		Occurrence: model.Occurrence{Start: start, End: start.Add(time.Hour)},
	}}, loc)

	assert.Contains(t, text, "07.01.2025 (Вт) 00:30-01:30")
}

func TestFormatHistory(t *testing.T) {
	student := &model.User{Forename: "Alan", Surname: "Turing"}
	lesson := &model.Lesson{Title: "Chemistry"}

	h := &service.History{
		Entries: []service.HistoryEntry{
			{Lesson: lesson, Occurrence: model.Occurrence{Start: time.Date(2025, time.January, 20, 9, 0, 0, 0, time.UTC)}, Present: false},
			{Lesson: lesson, Occurrence: model.Occurrence{Start: time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)}, Present: true},
		},
		Summary: reconciler.AttendanceSummary{Recorded: 2, Present: 1, Rate: 50},
	}

	text := FormatHistory(student, h, time.UTC)
	assert.Contains(t, text, "Alan Turing")
	assert.Contains(t, text, "50% (1 из 2)")
	assert.Contains(t, text, "❌ 20.01.2025 09:00 Chemistry")
	assert.Contains(t, text, "✅ 06.01.2025 09:00 Chemistry")

	assert.NotContains(t, text, "⚠️")

	empty := FormatHistory(student, &service.History{}, time.UTC)
	assert.Contains(t, empty, "Отметок посещаемости пока нет")

	broken := FormatHistory(student, &service.History{Failures: []reconciler.LessonFailure{{LessonID: 3}, {LessonID: 4}}}, time.UTC)
	assert.Contains(t, broken, "Не удалось построить расписание для 2 уроков")
}

func TestFormatRegister(t *testing.T) {
	marked := &model.User{ID: uuid.New(), Forename: "Ada"}
	absent := &model.User{ID: uuid.New(), Forename: "Alan"}
	pending := &model.User{ID: uuid.New(), Forename: "Grace"}
	start := time.Date(2025, time.January, 13, 9, 0, 0, 0, time.UTC)

	text := FormatRegister([]service.RegisterEntry{{
		Lesson:     &model.Lesson{Title: "Biology"},
		Occurrence: model.Occurrence{Start: start, End: start.Add(45 * time.Minute)},
		Users:      []*model.User{marked, absent, pending},
		Marks: []*model.AttendanceRecord{
			{UserID: marked.ID, Present: true},
			{UserID: absent.ID, Present: false},
		},
	}}, time.UTC)

	assert.Contains(t, text, "Biology</b> 09:00-09:45, 3 ученика")
	assert.Contains(t, text, "✅ Ada")
	assert.Contains(t, text, "❌ Alan")
	assert.Contains(t, text, "⏳ Grace")

	assert.Equal(t, "📭 Сегодня занятий нет.", FormatRegister(nil, time.UTC))
}

func TestFormatWeekdays(t *testing.T) {
	text := FormatWeekdays([]service.DaySummary{
		{Day: time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC), Present: 1, Total: 2, Rate: 50},
		{Day: time.Date(2025, time.January, 21, 0, 0, 0, 0, time.UTC)},
	})

	assert.Contains(t, text, "20.01.2025 (Пн): 1/2 (50%)")
	assert.Contains(t, text, "21.01.2025 (Вт): -")
}

func TestFormatCalendar(t *testing.T) {
	start := time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)
	cal := service.Calendar{
		Student: &model.User{Forename: "Ada", Surname: "Lovelace"},
		Occurrences: []service.LessonOccurrence{
			{Lesson: &model.Lesson{Title: "Maths"}, Occurrence: model.Occurrence{Start: start, End: start.Add(time.Hour)}},
			{Lesson: &model.Lesson{Title: "Maths"}, Occurrence: model.Occurrence{Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(time.Hour)}},
		},
		Failures: []reconciler.LessonFailure{{LessonID: 7}},
	}

	text := FormatCalendar(cal, time.UTC)
	assert.Contains(t, text, "Ada Lovelace</b>: 2 занятия")
	assert.Contains(t, text, "13.01.2025 (Пн) 09:00-10:00")
	assert.Contains(t, text, "1 урока")
}

func TestFormatRegisterDraft(t *testing.T) {
	ada := &model.User{ID: uuid.New(), Forename: "Ada"}
	alan := &model.User{ID: uuid.New(), Forename: "Alan"}
	d := &state.RegisterDraft{
		Title:   "Art <1>",
		Start:   time.Date(2025, time.January, 8, 11, 0, 0, 0, time.UTC),
		Users:   []*model.User{ada, alan},
		Present: map[uuid.UUID]bool{alan.ID: true},
	}

	text := FormatRegisterDraft(d, time.UTC)
	assert.Contains(t, text, "Art &lt;1&gt;")
	assert.Contains(t, text, "08.01.2025 (Ср) 11:00")
	assert.Contains(t, text, "Отмечено: 1 из 2")
}
