package sysvol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentRe(t *testing.T) {
	m := percentRe.FindStringSubmatch("  Mono: Playback 43 [67%] [-12.00dB] [on]")
	assert.Equal(t, []string{"[67%]", "67"}, m)

	assert.Nil(t, percentRe.FindStringSubmatch("no percentage here"))
}

func TestRealStep(t *testing.T) {
	assert.Equal(t, minStep, realStep(0.001), "a tiny positive step snaps up to the minimum")
	assert.Equal(t, -minStep, realStep(-0.001), "a tiny negative step snaps down to the minimum")
	assert.Equal(t, 0.05, realStep(0.05), "a step already at or above the minimum passes through")
	assert.Equal(t, -0.05, realStep(-0.05))
}
