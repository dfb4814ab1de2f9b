package traymenu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageTypeString(t *testing.T) {
	assert.Equal(t, "Stop", Stop.String())
	assert.Equal(t, "Play", Play.String())
	assert.Equal(t, "Play (liked)", PlayHL.String())
	assert.Equal(t, "Pause", Pause.String())
}

func TestNotifyTrayStartsStoppedAndTracksTooltip(t *testing.T) {
	tr := &NotifyTray{imageType: Stop}
	assert.Equal(t, Stop, tr.ImageType())

	tr.SetTooltip("hello")
	tr.mu.Lock()
	tooltip := tr.tooltip
	tr.mu.Unlock()
	assert.Equal(t, "hello", tooltip)
}

func TestNotifyTrayAddMenuItem(t *testing.T) {
	tr := &NotifyTray{imageType: Stop}
	called := false
	tr.AddMenuItem(MenuItem{Label: "Exit", Activate: func() { called = true }})

	tr.mu.Lock()
	items := tr.menuItems
	tr.mu.Unlock()
	assert.Len(t, items, 1)
	assert.Equal(t, "Exit", items[0].Label)

	items[0].Activate()
	assert.True(t, called)
}
