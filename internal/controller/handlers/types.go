package handlers

import (
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/controller/state"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

const (
	// Окно истории посещаемости
	attendanceHistoryDays = 30
	// Сколько последних будних дней показывать ученику
	attendanceWeekdays = 7
	// Окно расписания /schedule
	scheduleDays = 7
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService       *service.UserService
	scheduleService   *service.ScheduleService
	attendanceService *service.AttendanceService
	state             *state.Manager
	location          *time.Location
	now               func() time.Time
	logger            *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	userService *service.UserService,
	scheduleService *service.ScheduleService,
	attendanceService *service.AttendanceService,
	stateManager *state.Manager,
	location *time.Location,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:       userService,
		scheduleService:   scheduleService,
		attendanceService: attendanceService,
		state:             stateManager,
		location:          location,
		now:               time.Now,
		logger:            logger,
	}
}
