package state

import (
	"sync"

	"github.com/google/uuid"
)

// Manager управляет состояниями пользователей
type Manager struct {
	mu     sync.RWMutex
	states map[int64]*UserData // telegramID -> UserData
}

// NewManager создаёт новый менеджер состояний
func NewManager() *Manager {
	return &Manager{
		states: make(map[int64]*UserData),
	}
}

// GetState получает текущее состояние пользователя
func (sm *Manager) GetState(telegramID int64) UserState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, exists := sm.states[telegramID]; exists {
		return userData.State
	}
	return StateNone
}

// StartRegister открывает отметку занятия, заменяя прежний черновик
func (sm *Manager) StartRegister(telegramID int64, draft *RegisterDraft) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	d := draft.clone()
	if d.Present == nil {
		d.Present = make(map[uuid.UUID]bool)
	}
	sm.states[telegramID] = &UserData{
		State: StateTakingRegister,
		Draft: d,
	}
}

// Draft возвращает копию черновика, nil если отметка не открыта
func (sm *Manager) Draft(telegramID int64) *RegisterDraft {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	userData, exists := sm.states[telegramID]
	if !exists || userData.State != StateTakingRegister || userData.Draft == nil {
		return nil
	}
	return userData.Draft.clone()
}

// ToggleRegister меняет отметку i-го записанного и возвращает копию черновика.
// nil означает что отметка не открыта или индекс вне списка.
func (sm *Manager) ToggleRegister(telegramID int64, i int) *RegisterDraft {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	userData, exists := sm.states[telegramID]
	if !exists || userData.Draft == nil {
		return nil
	}
	if !userData.Draft.Toggle(i) {
		return nil
	}
	return userData.Draft.clone()
}

// ClearState очищает состояние и данные пользователя
func (sm *Manager) ClearState(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, telegramID)
}
