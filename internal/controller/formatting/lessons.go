package formatting

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/controller/state"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
)

func title(l *model.Lesson) string {
	if l == nil {
		return "Урок"
	}
	return html.EscapeString(l.Title)
}

// FormatOccurrence форматирует одно занятие: "📘 Математика\n   06.01.2025 (Пн) 09:00-10:00"
func FormatOccurrence(lo service.LessonOccurrence, loc *time.Location) string {
	start := lo.Occurrence.Start.In(loc)
	end := lo.Occurrence.End.In(loc)
	return fmt.Sprintf("📘 <b>%s</b>\n   %s %s",
		title(lo.Lesson),
		FormatDateWithWeekday(start),
		FormatTimeRange(start, end))
}

// FormatUpcoming форматирует ближайшие занятия
func FormatUpcoming(items []service.LessonOccurrence, loc *time.Location) string {
	if len(items) == 0 {
		return "📭 Ближайших занятий нет."
	}

	var sb strings.Builder
	sb.WriteString("🗓 <b>Ближайшие занятия</b>\n")
	for _, item := range items {
		sb.WriteString("\n")
		sb.WriteString(FormatOccurrence(item, loc))
		sb.WriteString("\n")
	}
	return sb.String()
}

func failuresNote(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("⚠️ Не удалось построить расписание для %d %s\n", n, pluralize(n, "урока", "уроков", "уроков"))
}

// FormatCalendar форматирует расписание ученика
func FormatCalendar(cal service.Calendar, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 <b>%s</b>: %d %s\n",
		html.EscapeString(cal.Student.FullName()),
		len(cal.Occurrences),
		PluralizeLessons(len(cal.Occurrences)))

	for _, item := range cal.Occurrences {
		sb.WriteString(FormatOccurrence(item, loc))
		sb.WriteString("\n")
	}
	sb.WriteString(failuresNote(len(cal.Failures)))
	return sb.String()
}

// FormatHistory форматирует посещаемость ученика, от новых занятий к старым
func FormatHistory(student *model.User, h *service.History, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%s</b>\n", html.EscapeString(student.FullName()))
	sb.WriteString(failuresNote(len(h.Failures)))

	if h.Summary.Recorded == 0 {
		sb.WriteString("Отметок посещаемости пока нет.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Посещаемость: %d%% (%d из %d)\n\n",
		h.Summary.Rate, h.Summary.Present, h.Summary.Recorded)

	for _, e := range h.Entries {
		mark := "❌"
		if e.Present {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s %s\n",
			mark,
			FormatDateTime(e.Occurrence.Start.In(loc)),
			title(e.Lesson))
	}
	return sb.String()
}

// FormatWeekdays форматирует посещаемость по будним дням
func FormatWeekdays(days []service.DaySummary) string {
	var sb strings.Builder
	sb.WriteString("📅 <b>По дням</b>\n")
	for _, d := range days {
		if d.Total == 0 {
			fmt.Fprintf(&sb, "%s: -\n", FormatDateWithWeekday(d.Day))
			continue
		}
		fmt.Fprintf(&sb, "%s: %d/%d (%d%%)\n", FormatDateWithWeekday(d.Day), d.Present, d.Total, d.Rate)
	}
	return sb.String()
}

// FormatRegister форматирует журнал дня: занятия, записанные и их отметки
func FormatRegister(entries []service.RegisterEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return "📭 Сегодня занятий нет."
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Журнал на сегодня</b>\n")

	for _, e := range entries {
		marks := make(map[uuid.UUID]bool, len(e.Marks))
		for _, m := range e.Marks {
			marks[m.UserID] = m.Present
		}

		start := e.Occurrence.Start.In(loc)
		fmt.Fprintf(&sb, "\n📘 <b>%s</b> %s, %d %s\n",
			title(e.Lesson),
			FormatTimeRange(start, e.Occurrence.End.In(loc)),
			len(e.Users),
			PluralizeStudents(len(e.Users)))

		for _, u := range e.Users {
			status := "⏳"
			if present, ok := marks[u.ID]; ok {
				status = "❌"
				if present {
					status = "✅"
				}
			}
			fmt.Fprintf(&sb, "   %s %s\n", status, html.EscapeString(u.FullName()))
		}
	}
	return sb.String()
}

// FormatRegisterDraft заголовок незавершённой отметки занятия
func FormatRegisterDraft(d *state.RegisterDraft, loc *time.Location) string {
	present := len(d.PresentIDs())
	return fmt.Sprintf("📝 <b>%s</b>\n%s %s\n\nОтмечено: %d из %d\nНажмите на ученика, чтобы изменить отметку.",
		html.EscapeString(d.Title),
		FormatDateWithWeekday(d.Start.In(loc)),
		d.Start.In(loc).Format("15:04"),
		present,
		len(d.Users))
}
