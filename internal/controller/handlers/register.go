package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller/state"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Callback data отметки посещаемости
const (
	RegisterPrefix = "reg_"
	RegisterOpen   = "reg_open:"   // reg_open:lesson_id:unix_start
	RegisterToggle = "reg_toggle:" // reg_toggle:index
	RegisterSave   = "reg_save"
	RegisterCancel = "reg_cancel"
)

func registerOpenData(lessonID int64, start time.Time) string {
	return fmt.Sprintf("%s%d:%d", RegisterOpen, lessonID, start.Unix())
}

func parseRegisterOpen(data string) (int64, time.Time, error) {
	parts := strings.Split(strings.TrimPrefix(data, RegisterOpen), ":")
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("invalid callback data %q", data)
	}
	lessonID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse lesson id: %w", err)
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse start: %w", err)
	}
	return lessonID, time.Unix(unix, 0).UTC(), nil
}

func parseRegisterToggle(data string) (int, error) {
	i, err := strconv.Atoi(strings.TrimPrefix(data, RegisterToggle))
	if err != nil {
		return 0, fmt.Errorf("parse index: %w", err)
	}
	return i, nil
}

// todayKeyboard кнопки открытия отметки для каждого занятия дня
func todayKeyboard(entries []service.RegisterEntry, loc *time.Location) *keyboard.Builder {
	kb := keyboard.NewBuilder()
	for _, e := range entries {
		title := "Урок"
		if e.Lesson != nil {
			title = e.Lesson.Title
		}
		text := fmt.Sprintf("📝 %s %s", e.Occurrence.Start.In(loc).Format("15:04"), title)
		kb.Row(keyboard.Button(text, registerOpenData(e.Occurrence.LessonID, e.Occurrence.Start)))
	}
	return kb
}

// draftKeyboard по кнопке на каждого записанного и кнопки сохранения
func draftKeyboard(d *state.RegisterDraft) *models.InlineKeyboardMarkup {
	kb := keyboard.NewBuilder()
	for i, u := range d.Users {
		mark := "⬜"
		if d.Present[u.ID] {
			mark = "✅"
		}
		kb.Row(keyboard.Button(mark+" "+u.FullName(), fmt.Sprintf("%s%d", RegisterToggle, i)))
	}
	kb.Row(
		keyboard.Button("💾 Сохранить", RegisterSave),
		keyboard.Button("✖️ Отмена", RegisterCancel),
	)
	return kb.Build()
}

// HandleRegisterCallback обрабатывает кнопки отметки посещаемости
func (h *Handlers) HandleRegisterCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}
	data := callback.Data

	h.logger.Info("Routing callback",
		zap.String("data", data),
		zap.Int64("telegram_id", callback.From.ID))

	if _, ok := h.requireStaffCallback(ctx, b, callback); !ok {
		return
	}

	switch {
	case strings.HasPrefix(data, RegisterOpen):
		h.handleRegisterOpen(ctx, b, callback)
	case strings.HasPrefix(data, RegisterToggle):
		h.handleRegisterToggle(ctx, b, callback)
	case data == RegisterSave:
		h.handleRegisterSave(ctx, b, callback)
	case data == RegisterCancel:
		h.state.ClearState(callback.From.ID)
		h.editHTML(ctx, b, callback, "✖️ Отметка отменена.", nil)
		h.answerCallback(ctx, b, callback.ID, "")
	default:
		h.logger.Warn("Unknown callback",
			zap.String("data", data),
			zap.Int64("telegram_id", callback.From.ID))
		h.answerCallback(ctx, b, callback.ID, "❌ Неизвестная команда")
	}
}

func (h *Handlers) handleRegisterOpen(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	lessonID, start, err := parseRegisterOpen(callback.Data)
	if err != nil {
		h.logger.Error("Failed to parse register callback", zap.String("data", callback.Data), zap.Error(err))
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Неверный формат")
		return
	}

	entry, err := h.attendanceService.Register(ctx, lessonID, start)
	if apperrors.IsNotFound(err) {
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Занятие не найдено")
		return
	}
	if err != nil {
		h.logger.Error("Failed to open register",
			zap.Int64("lesson_id", lessonID),
			zap.Time("start", start),
			zap.Error(err))
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Не удалось загрузить журнал")
		return
	}

	draft := newDraft(entry)
	h.state.StartRegister(callback.From.ID, draft)

	h.editHTML(ctx, b, callback, formatting.FormatRegisterDraft(draft, h.location), draftKeyboard(draft))
	h.answerCallback(ctx, b, callback.ID, "")
}

// newDraft черновик с уже стоящими отметками занятия
func newDraft(entry *service.RegisterEntry) *state.RegisterDraft {
	title := "Урок"
	if entry.Lesson != nil {
		title = entry.Lesson.Title
	}
	d := &state.RegisterDraft{
		LessonID: entry.Occurrence.LessonID,
		Start:    entry.Occurrence.Start,
		Title:    title,
		Users:    append([]*model.User(nil), entry.Users...),
		Present:  make(map[uuid.UUID]bool, len(entry.Marks)),
	}
	for _, m := range entry.Marks {
		if m.Present {
			d.Present[m.UserID] = true
		}
	}
	return d
}

func (h *Handlers) handleRegisterToggle(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	i, err := parseRegisterToggle(callback.Data)
	if err != nil {
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Неверный формат")
		return
	}

	draft := h.state.ToggleRegister(callback.From.ID, i)
	if draft == nil {
		h.answerCallbackAlert(ctx, b, callback.ID, "⌛ Отметка устарела, откройте /today заново")
		return
	}

	h.editHTML(ctx, b, callback, formatting.FormatRegisterDraft(draft, h.location), draftKeyboard(draft))
	h.answerCallback(ctx, b, callback.ID, "")
}

func (h *Handlers) handleRegisterSave(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	draft := h.state.Draft(callback.From.ID)
	if draft == nil {
		h.answerCallbackAlert(ctx, b, callback.ID, "⌛ Отметка устарела, откройте /today заново")
		return
	}

	records, err := h.attendanceService.TakeRegister(ctx, draft.LessonID, draft.Start, draft.PresentIDs())
	if err != nil {
		h.logger.Error("Failed to save register",
			zap.Int64("lesson_id", draft.LessonID),
			zap.Time("start", draft.Start),
			zap.Error(err))
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Не удалось сохранить отметки")
		return
	}
	h.state.ClearState(callback.From.ID)

	text := fmt.Sprintf("✅ Отметки сохранены: %d из %d присутствуют.", len(draft.PresentIDs()), len(records))
	h.editHTML(ctx, b, callback, text, nil)
	h.answerCallback(ctx, b, callback.ID, "Сохранено")
}
