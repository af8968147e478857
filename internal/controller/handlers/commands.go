package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/lesson_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From

	// Регистрируем пользователя
	user, err := h.userService.RegisterTelegramUser(ctx, from.ID, from.FirstName, from.LastName)
	if err != nil {
		h.logger.Error("Failed to register user",
			zap.Int64("telegram_id", from.ID),
			zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Я показываю школьное расписание и посещаемость.\n\n"+
			"Доступные команды:\n"+
			"/upcoming - Ближайшие занятия\n"+
			"/schedule - Расписание на неделю\n"+
			"/attendance - Посещаемость\n"+
			"/help - Справка",
		html.EscapeString(user.Forename),
	)

	h.sendHTML(ctx, b, update.Message.Chat.ID, welcomeText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/start - Начать работу с ботом\n" +
		"/upcoming - Три ближайших занятия по будним дням\n" +
		"/schedule - Расписание на неделю вперёд\n" +
		"/attendance - Посещаемость за последние 30 дней\n" +
		"/help - Показать эту справку\n\n" +
		"Для учителей:\n" +
		"/today - Журнал занятий на сегодня"

	h.sendHTML(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleUpcoming обрабатывает команду /upcoming
func (h *Handlers) HandleUpcoming(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	scope, err := h.userService.Scope(user)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Для вашей роли расписание недоступно.")
		return
	}

	upcoming, err := h.scheduleService.Upcoming(ctx, scope, h.now(), 0)
	if err != nil {
		h.logger.Error("Failed to get upcoming lessons",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Не удалось загрузить расписание. Попробуйте позже.")
		return
	}

	h.sendHTML(ctx, b, chatID, formatting.FormatUpcoming(upcoming, h.location))
}

// HandleSchedule обрабатывает команду /schedule
func (h *Handlers) HandleSchedule(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	scope, err := h.userService.Scope(user)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Для вашей роли расписание недоступно.")
		return
	}

	now := h.now()
	calendars, err := h.scheduleService.Calendars(ctx, scope, now, now.AddDate(0, 0, scheduleDays))
	if err != nil {
		h.logger.Error("Failed to get calendars",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Не удалось загрузить расписание. Попробуйте позже.")
		return
	}

	if len(calendars) == 0 {
		h.sendHTML(ctx, b, chatID, "📭 К вам не привязан ни один ученик.")
		return
	}

	parts := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		parts = append(parts, formatting.FormatCalendar(cal, h.location))
	}
	h.sendHTML(ctx, b, chatID, strings.Join(parts, "\n"))
}

// HandleAttendance обрабатывает команду /attendance
func (h *Handlers) HandleAttendance(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	var students []*model.User
	switch user.Role {
	case model.RoleStudent:
		students = []*model.User{user}
	case model.RoleGuardian:
		linked, err := h.userService.GuardianStudents(ctx, user.ID)
		if err != nil {
			h.logger.Error("Failed to get guardian students",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
			h.sendError(ctx, b, chatID, "❌ Произошла ошибка. Попробуйте позже.")
			return
		}
		students = linked
	default:
		h.sendError(ctx, b, chatID, "ℹ️ Отметки по занятиям дня доступны через /today.")
		return
	}

	if len(students) == 0 {
		h.sendHTML(ctx, b, chatID, "📭 К вам не привязан ни один ученик.")
		return
	}

	// окно заканчивается завтра, чтобы сегодняшние занятия точно попали
	to := h.now().AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -attendanceHistoryDays)

	parts := make([]string, 0, len(students))
	for _, student := range students {
		history, err := h.attendanceService.History(ctx, student.ID, from, to)
		if err != nil {
			h.logger.Error("Failed to get attendance history",
				zap.String("student_id", student.ID.String()),
				zap.Error(err))
			h.sendError(ctx, b, chatID, "❌ Не удалось загрузить посещаемость. Попробуйте позже.")
			return
		}
		text := formatting.FormatHistory(student, history, h.location)

		if user.Role == model.RoleStudent {
			days, err := h.attendanceService.WeekdaySummary(ctx, student.ID, h.now(), attendanceWeekdays)
			if err != nil {
				h.logger.Error("Failed to get weekday summary",
					zap.String("student_id", student.ID.String()),
					zap.Error(err))
			} else {
				text += "\n" + formatting.FormatWeekdays(days)
			}
		}
		parts = append(parts, text)
	}

	h.sendHTML(ctx, b, chatID, strings.Join(parts, "\n"))
}

// HandleToday обрабатывает команду /today - журнал занятий дня для учителя
func (h *Handlers) HandleToday(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireStaff(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	entries, err := h.attendanceService.TodayRegister(ctx, h.now())
	if err != nil {
		h.logger.Error("Failed to build today register",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Не удалось загрузить журнал. Попробуйте позже.")
		return
	}

	kb := todayKeyboard(entries, h.location)
	if kb.Len() == 0 {
		h.sendHTML(ctx, b, chatID, formatting.FormatRegister(entries, h.location))
		return
	}
	h.sendHTMLWithKeyboard(ctx, b, chatID, formatting.FormatRegister(entries, h.location), kb.Build())
}
