package handlers

import (
	"context"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser проверяет что пользователь существует
// Возвращает user и true если OK, nil и false если нет
func (h *Handlers) requireUser(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.userService.GetByTelegramID(ctx, telegramID)

	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}

	if user == nil {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Пользователь не найден. Используйте /start для регистрации.")
		return nil, false
	}

	return user, true
}

// requireStaff проверяет что пользователь учитель или администратор
func (h *Handlers) requireStaff(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return nil, false
	}

	if user.Role != model.RoleTeacher && user.Role != model.RoleAdmin {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Эта команда доступна только учителям.")
		return nil, false
	}

	return user, true
}

// sendError отправляет сообщение об ошибке и логирует если не удалось
func (h *Handlers) sendError(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send error message",
			zap.Int64("chat_id", chatID),
			zap.String("text", text),
			zap.Error(err),
		)
	}
}

// sendHTML отправляет HTML-сообщение и логирует если не удалось
func (h *Handlers) sendHTML(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// sendHTMLWithKeyboard отправляет HTML-сообщение с inline клавиатурой
func (h *Handlers) sendHTMLWithKeyboard(ctx context.Context, b *bot.Bot, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// requireStaffCallback то же что requireStaff, но для нажатия кнопки
func (h *Handlers) requireStaffCallback(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) (*model.User, bool) {
	user, err := h.userService.GetByTelegramID(ctx, callback.From.ID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", callback.From.ID), zap.Error(err))
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Ошибка получения пользователя")
		return nil, false
	}
	if user == nil {
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Пользователь не найден. Используйте /start")
		return nil, false
	}
	if user.Role != model.RoleTeacher && user.Role != model.RoleAdmin {
		h.answerCallbackAlert(ctx, b, callback.ID, "❌ Эта функция доступна только учителям")
		return nil, false
	}
	return user, true
}

// answerCallback отвечает на callback query (без alert)
func (h *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}

// answerCallbackAlert отвечает на callback query всплывающим окном
func (h *Handlers) answerCallbackAlert(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	}); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}

// editHTML заменяет текст сообщения с кнопкой. markup nil убирает клавиатуру.
func (h *Handlers) editHTML(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, text string, markup *models.InlineKeyboardMarkup) {
	msg := callback.Message.Message
	if msg == nil {
		h.logger.Warn("Callback message is inaccessible", zap.String("data", callback.Data))
		return
	}
	if markup == nil {
		markup = &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}}
	}

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Error("Failed to edit message",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Int("message_id", msg.ID),
			zap.Error(err))
	}
}
