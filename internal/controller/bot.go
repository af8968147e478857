package controller

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller/state"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot      *bot.Bot
	handlers *handlers.Handlers
	logger   *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	userService *service.UserService,
	scheduleService *service.ScheduleService,
	attendanceService *service.AttendanceService,
	location *time.Location,
	logger *zap.Logger,
) *BotController {
	// Создаём обработчики команд
	cmdHandlers := handlers.NewHandlers(
		userService,
		scheduleService,
		attendanceService,
		state.NewManager(),
		location,
		logger,
	)

	return &BotController{
		bot:      botInstance,
		handlers: cmdHandlers,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/upcoming", bot.MatchTypeExact, c.handlers.HandleUpcoming)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/schedule", bot.MatchTypeExact, c.handlers.HandleSchedule)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/attendance", bot.MatchTypeExact, c.handlers.HandleAttendance)

	// Команды для учителей
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/today", bot.MatchTypeExact, c.handlers.HandleToday)

	// Кнопки отметки посещаемости
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, handlers.RegisterPrefix, bot.MatchTypePrefix, c.handlers.HandleRegisterCallback)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "upcoming", Description: "🗓 Ближайшие занятия"},
		{Command: "schedule", Description: "📅 Расписание на неделю"},
		{Command: "attendance", Description: "📊 Посещаемость"},
		{Command: "today", Description: "📋 Журнал на сегодня (учитель)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота и блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
