package hotkeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidAction(t *testing.T) {
	for _, a := range []Action{ToggleStop, Next, Prev, NextDir, PrevDir, PauseToggle, VolDown, VolUp, SysVolDown, SysVolUp} {
		assert.True(t, validAction(a), "%s should be valid", a)
	}
	assert.False(t, validAction(Action("not_a_real_action")))
	assert.False(t, validAction(Action("")))
}
