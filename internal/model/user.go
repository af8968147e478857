package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserExists пользователь с таким Telegram ID уже зарегистрирован
var ErrUserExists = errors.New("user already exists")

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleTeacher  Role = "TEACHER"
	RoleStudent  Role = "STUDENT"
	RoleGuardian Role = "GUARDIAN"
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleGuardian:
		return true
	}
	return false
}

type User struct {
	ID         uuid.UUID `json:"id"`
	TelegramID *int64    `json:"telegram_id"` // может быть nil, если бот не привязан
	Forename   string    `json:"forename"`
	Surname    string    `json:"surname"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// FullName возвращает имя и фамилию
func (u *User) FullName() string {
	if u.Surname == "" {
		return u.Forename
	}
	return u.Forename + " " + u.Surname
}
