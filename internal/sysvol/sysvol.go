// Package sysvol reads and nudges the desktop's master output volume by
// shelling out to amixer. Grounded on original_source/src/sys_vol.rs's
// ALSA mixer wrapper; no ALSA mixer-control library appears in the pack
// (only PCM/codec libraries do), so this talks to amixer directly, the
// spec's one named external collaborator.
package sysvol

import (
	"context"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	card       = "default"
	control    = "Master"
	cmdTimeout = 3 * time.Second
	// minStep is amixer's usual percent granularity; the original queries
	// ALSA's raw volume range for an exact minimum step, which amixer's
	// percent-based interface does not expose.
	minStep = 0.01
)

var percentRe = regexp.MustCompile(`\[(\d+)%\]`)

// SysVol controls the default ALSA card's Master control.
type SysVol struct{}

func New() *SysVol { return &SysVol{} }

func runAmixer(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "amixer", append([]string{"-D", card}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "amixer %v failed", args)
	}
	return string(out), nil
}

// Get returns the master volume normalized to [0, 1].
func (s *SysVol) Get() (float64, error) {
	out, err := runAmixer("get", control)
	if err != nil {
		return 0, errors.Wrap(err, "cannot get ALSA master volume")
	}
	m := percentRe.FindStringSubmatch(out)
	if m == nil {
		return 0, errors.New("cannot parse amixer output")
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, errors.Wrap(err, "cannot parse amixer percentage")
	}
	return float64(pct) / 100, nil
}

// Set sets the master volume, clamped to [0, 1].
func (s *SysVol) Set(vol float64) error {
	vol = math.Max(0, math.Min(1, vol))
	pct := int(math.Round(vol * 100))
	_, err := runAmixer("set", control, strconv.Itoa(pct)+"%")
	if err != nil {
		return errors.Wrap(err, "cannot set ALSA master volume")
	}
	return nil
}

func realStep(step float64) float64 {
	if step > 0 {
		if minStep > step {
			return minStep
		}
		return step
	}
	if -minStep < step {
		return -minStep
	}
	return step
}

// ModifyWithStep nudges the master volume by step (rounded to the nearest
// multiple of the step size, matching the original's snap-to-grid
// behavior) and returns the resulting volume.
func (s *SysVol) ModifyWithStep(step float64) (float64, error) {
	step = realStep(step)
	vol, err := s.Get()
	if err != nil {
		return 0, err
	}
	vol += step
	stepAbs := math.Abs(step)
	nSteps := math.Round(vol / stepAbs)
	vol = nSteps * stepAbs
	if err := s.Set(vol); err != nil {
		return 0, err
	}
	return s.Get()
}
