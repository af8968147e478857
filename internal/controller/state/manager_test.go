package state

import (
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft() *RegisterDraft {
	return &RegisterDraft{
		LessonID: 7,
		Start:    time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC),
		Title:    "Maths",
		Users: []*model.User{
			{ID: uuid.New(), Forename: "Ada"},
			{ID: uuid.New(), Forename: "Alan"},
		},
	}
}

func TestManager_RegisterFlow(t *testing.T) {
	sm := NewManager()
	const tgID int64 = 42

	assert.Equal(t, StateNone, sm.GetState(tgID))
	assert.Nil(t, sm.Draft(tgID))

	draft := newDraft()
	sm.StartRegister(tgID, draft)
	assert.Equal(t, StateTakingRegister, sm.GetState(tgID))

	d := sm.ToggleRegister(tgID, 1)
	require.NotNil(t, d)
	assert.Equal(t, []uuid.UUID{draft.Users[1].ID}, d.PresentIDs())

	d = sm.ToggleRegister(tgID, 0)
	require.NotNil(t, d)
	assert.Equal(t, []uuid.UUID{draft.Users[0].ID, draft.Users[1].ID}, d.PresentIDs())

	d = sm.ToggleRegister(tgID, 1)
	require.NotNil(t, d)
	assert.Equal(t, []uuid.UUID{draft.Users[0].ID}, d.PresentIDs())

	assert.Nil(t, sm.ToggleRegister(tgID, 2))
	assert.Nil(t, sm.ToggleRegister(tgID, -1))

	sm.ClearState(tgID)
	assert.Equal(t, StateNone, sm.GetState(tgID))
	assert.Nil(t, sm.ToggleRegister(tgID, 0))
}

func TestManager_DraftIsCopy(t *testing.T) {
	sm := NewManager()
	sm.StartRegister(1, newDraft())

	d := sm.Draft(1)
	require.NotNil(t, d)
	d.Toggle(0)

	assert.Empty(t, sm.Draft(1).PresentIDs())
}

func TestManager_Concurrent(t *testing.T) {
	sm := NewManager()
	sm.StartRegister(1, newDraft())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.ToggleRegister(1, 0)
			_ = sm.Draft(1)
		}()
	}
	wg.Wait()

	// чётное число переключений возвращает исходную отметку
	assert.Empty(t, sm.Draft(1).PresentIDs())
}
