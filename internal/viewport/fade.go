package viewport

import (
	"math"
	"time"
)

// maxFadeStep is the longest gap between two fade steps; a slower caller
// ends the animation instead of jumping.
const maxFadeStep = 100 * time.Millisecond

type fading struct {
	vx     float64
	vy     float64
	last   time.Time
	active bool
}

// Fling starts an inertial movement with velocity vx, vy in canvas pixels per
// second, as measured at release time at.
func (m *Map) Fling(vx, vy float64, at time.Time) {
	m.fade = fading{vx: vx, vy: vy, last: at, active: true}
}

func (m *Map) StopFading() {
	m.fade.active = false
}

func (m *Map) Fading() bool {
	return m.fade.active
}

// FadeStep advances the movement to now and reports whether it continues.
// The velocity halves every 1/9 s; the movement ends once both components
// drop to 1 px/s.
func (m *Map) FadeStep(now time.Time) bool {
	if !m.fade.active {
		return false
	}

	dt := now.Sub(m.fade.last)
	m.fade.last = now
	if dt < 0 || dt >= maxFadeStep {
		m.fade.active = false
		return false
	}

	s := dt.Seconds()
	dx, dy := m.fade.vx*s, m.fade.vy*s

	decay := math.Exp2(-9 * s)
	m.fade.vx *= decay
	m.fade.vy *= decay

	m.Translate(dx, dy)

	m.fade.active = math.Abs(m.fade.vx) > 1 || math.Abs(m.fade.vy) > 1
	return m.fade.active
}
