package state

import (
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
)

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

const (
	StateNone UserState = "" // Нет активного состояния

	// Учитель отмечает присутствующих на занятии
	StateTakingRegister UserState = "taking_register"
)

// RegisterDraft незавершённая отметка посещаемости одного занятия
type RegisterDraft struct {
	LessonID int64
	Start    time.Time
	Title    string
	Users    []*model.User
	Present  map[uuid.UUID]bool
}

// Toggle меняет отметку пользователя с индексом i, false если индекса нет
func (d *RegisterDraft) Toggle(i int) bool {
	if i < 0 || i >= len(d.Users) {
		return false
	}
	id := d.Users[i].ID
	d.Present[id] = !d.Present[id]
	return true
}

func (d *RegisterDraft) clone() *RegisterDraft {
	c := *d
	c.Users = append([]*model.User(nil), d.Users...)
	c.Present = make(map[uuid.UUID]bool, len(d.Present))
	for id, v := range d.Present {
		c.Present[id] = v
	}
	return &c
}

// PresentIDs присутствующие в порядке списка записанных
func (d *RegisterDraft) PresentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Present))
	for _, u := range d.Users {
		if d.Present[u.ID] {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State UserState
	Draft *RegisterDraft
}
