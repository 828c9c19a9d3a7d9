// Package navigator implements Navigator: the offset_days state machine
// driving the viewport (spec.md §4.7) — Idle/Dragging/Animating, spring
// integration for momentum and snapback, cubic easing for keyboard jumps.
package navigator

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/calendar"
	"github.com/MeKo-Tech/capstripeviz/internal/config"
)

// State is one of the top-level navigator states.
type State int

const (
	Idle State = iota
	Dragging
	Animating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Animating:
		return "animating"
	default:
		return "unknown"
	}
}

// AnimKind distinguishes the three Animating sub-states.
type AnimKind int

const (
	AnimNone AnimKind = iota
	Momentum
	Snapback
	Keyboard
)

func (k AnimKind) String() string {
	switch k {
	case Momentum:
		return "momentum"
	case Snapback:
		return "snapback"
	case Keyboard:
		return "keyboard"
	default:
		return "none"
	}
}

// PointerMethod distinguishes mouse drag from two-finger touch drag, since
// spec.md §4.7's "input-method specifics" diverge: mouse never gains
// momentum on release, touch does.
type PointerMethod int

const (
	Mouse PointerMethod = iota
	Touch
)

// touchAxisMinRatio is the |Δx| > ratio·|Δy| gate for accepting a two-finger
// touch gesture as horizontal navigation (spec.md §4.7). Not an enumerated
// config key; chosen as a conservative constant since no pack repo models
// touch gesture disambiguation to borrow a value from.
const touchAxisMinRatio = 1.2

// wheelQuiescence is how long to wait after the last wheel event before
// treating the gesture as settled and starting the ease-out animation.
const wheelQuiescence = 150 * time.Millisecond

// Bounds is the navigator's hard offset range, per spec.md §4.7.
type Bounds struct {
	Min int
	Max int
}

type pointerSample struct {
	offset float64
	tMs    float64
}

// Navigator owns the single offset_days source of truth and its state
// machine. Safe for concurrent use; all mutation happens under one mutex,
// matching the engine's single-logical-execution-context model (SPEC_FULL
// §5) while still being safely callable from an HTTP handler goroutine.
type Navigator struct {
	cfg          config.NavigatorConfig
	bounds       Bounds
	pixelsPerDay float64
	logger       *slog.Logger
	nowFn        func() time.Time

	mu       sync.Mutex
	state    State
	animKind AnimKind

	offset   float64
	velocity float64

	anchorOffset float64
	anchorPixel  float64
	anchorY      float64
	samples      []pointerSample

	touchAxisDecided  bool
	touchAxisAccepted bool

	wheelActive bool
	lastWheelAt time.Time

	target      float64
	animFrom    float64
	animStartAt time.Time
	lastTickAt  time.Time
}

// New creates a Navigator clamped within bounds, with pixelsPerDay derived
// from containerWidthPx (spec.md §4.6: pixels_per_day = container_width / 365).
func New(cfg config.NavigatorConfig, bounds Bounds, containerWidthPx int, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Navigator{
		cfg:    cfg,
		bounds: bounds,
		logger: logger,
		nowFn:  time.Now,
		offset: float64(bounds.Max),
	}
	n.SetViewportWidth(containerWidthPx)
	return n
}

func (n *Navigator) now() time.Time {
	if n.nowFn != nil {
		return n.nowFn()
	}
	return time.Now()
}

// SetViewportWidth updates the pixel-to-day conversion used by drag/wheel
// handling, for when the container is resized.
func (n *Navigator) SetViewportWidth(containerWidthPx int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if containerWidthPx <= 0 {
		containerWidthPx = 1
	}
	n.pixelsPerDay = float64(containerWidthPx) / 365.0
}

// Offset returns the current offset_days, rounded to the nearest integer.
func (n *Navigator) Offset() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return int(math.Round(n.offset))
}

// Snapshot is a point-in-time view of navigator state, for stats/testing.
type Snapshot struct {
	Offset   int
	State    string
	AnimKind string
	Velocity float64
}

func (n *Navigator) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Snapshot{
		Offset:   int(math.Round(n.offset)),
		State:    n.state.String(),
		AnimKind: n.animKind.String(),
		Velocity: n.velocity,
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (n *Navigator) elasticLo() float64 { return float64(n.bounds.Min - n.cfg.ElasticLimitDays) }
func (n *Navigator) elasticHi() float64 { return float64(n.bounds.Max + n.cfg.ElasticLimitDays) }

// cancelAnimationLocked implements "any input event cancels any ongoing
// animation before starting a new one" (spec.md §4.7).
func (n *Navigator) cancelAnimationLocked() {
	if n.state == Animating {
		n.state = Idle
		n.animKind = AnimNone
	}
}

// Cancel is the Navigator's explicit cancel(): places it in Idle at the
// current offset, clamped to the hard (non-elastic) bounds.
func (n *Navigator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = Idle
	n.animKind = AnimNone
	n.wheelActive = false
	n.offset = clampF(n.offset, float64(n.bounds.Min), float64(n.bounds.Max))
	n.velocity = 0
}

// OnPointerDown starts a drag, capturing the anchor offset and pixel.
func (n *Navigator) OnPointerDown(xPx, yPx, tMs float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelAnimationLocked()
	n.state = Dragging
	n.wheelActive = false
	n.anchorOffset = n.offset
	n.anchorPixel = xPx
	n.anchorY = yPx
	n.touchAxisDecided = false
	n.touchAxisAccepted = false
	n.samples = n.samples[:0]
	n.samples = append(n.samples, pointerSample{offset: n.offset, tMs: tMs})
}

// OnPointerMove advances offset during a drag. For Touch, the gesture is
// gated on a horizontal/vertical axis decision made from the first
// significant movement (spec.md §4.7 touch specifics).
func (n *Navigator) OnPointerMove(method PointerMethod, xPx, yPx, tMs float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Dragging {
		return
	}

	dx := xPx - n.anchorPixel
	dy := yPx - n.anchorY

	if method == Touch && !n.touchAxisDecided {
		if math.Abs(dx) < 1 && math.Abs(dy) < 1 {
			return // not enough movement yet to decide
		}
		n.touchAxisDecided = true
		n.touchAxisAccepted = math.Abs(dx) > touchAxisMinRatio*math.Abs(dy)
		if !n.touchAxisAccepted {
			// Vertical scroll wins; this gesture is not navigation.
			n.state = Idle
			return
		}
	}
	if method == Touch && !n.touchAxisAccepted {
		return
	}

	raw := n.anchorOffset - dx/n.pixelsPerDay
	n.offset = clampF(raw, n.elasticLo(), n.elasticHi())
	n.pushSampleLocked(n.offset, tMs)
}

func (n *Navigator) pushSampleLocked(offset, tMs float64) {
	n.samples = append(n.samples, pointerSample{offset: offset, tMs: tMs})
	cutoff := tMs - 100
	i := 0
	for i < len(n.samples) && n.samples[i].tMs < cutoff {
		i++
	}
	n.samples = n.samples[i:]
}

// estimateVelocityLocked estimates days/sec from the trailing sample
// window via first-to-last slope (spec.md §4.7).
func (n *Navigator) estimateVelocityLocked() float64 {
	if len(n.samples) < 2 {
		return 0
	}
	first := n.samples[0]
	last := n.samples[len(n.samples)-1]
	dtMs := last.tMs - first.tMs
	if dtMs <= 0 {
		return 0
	}
	return (last.offset - first.offset) / (dtMs / 1000)
}

func nearestBound(offset float64, b Bounds) float64 {
	if math.Abs(offset-float64(b.Min)) <= math.Abs(offset-float64(b.Max)) {
		return float64(b.Min)
	}
	return float64(b.Max)
}

// OnPointerUp releases a drag, transitioning to Idle, Animating{Momentum}
// (touch only; mouse never gains momentum per spec.md §4.7) or
// Animating{Snapback} depending on final position and velocity.
func (n *Navigator) OnPointerUp(method PointerMethod, tMs float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Dragging {
		return
	}

	inBounds := n.offset >= float64(n.bounds.Min) && n.offset <= float64(n.bounds.Max)
	if !inBounds {
		n.startAnimationLocked(Snapback, nearestBound(n.offset, n.bounds), 0)
		return
	}

	v := n.estimateVelocityLocked()
	if method == Mouse || math.Abs(v) <= n.cfg.VelocityThreshold {
		n.state = Idle
		n.velocity = 0
		return
	}

	target := clampF(n.offset-v*n.cfg.MomentumScale, float64(n.bounds.Min), float64(n.bounds.Max))
	n.startAnimationLocked(Momentum, target, v)
}

// OnPointerCancel aborts a drag without starting any animation.
func (n *Navigator) OnPointerCancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Dragging {
		return
	}
	n.state = Idle
	n.offset = clampF(n.offset, float64(n.bounds.Min), float64(n.bounds.Max))
}

func (n *Navigator) startAnimationLocked(kind AnimKind, target float64, initialVelocity float64) {
	n.state = Animating
	n.animKind = kind
	n.target = target
	n.animFrom = n.offset
	n.velocity = initialVelocity
	n.animStartAt = n.now()
	n.lastTickAt = n.animStartAt
}

// OnWheel advances offset directly during an active wheel gesture
// (spec.md §4.7: "horizontal deltas advance offset directly"); quiescence
// is detected by Tick, which starts an ease-out Momentum animation once no
// wheel event has arrived for wheelQuiescence.
func (n *Navigator) OnWheel(dxPx, tMs float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelAnimationLocked()

	delta := dxPx * n.cfg.WheelSensitivity / n.pixelsPerDay
	n.offset = clampF(n.offset+delta, n.elasticLo(), n.elasticHi())
	n.pushSampleLocked(n.offset, tMs)
	n.state = Dragging
	n.wheelActive = true
	n.lastWheelAt = n.now()
}

// addMonths adds delta months to d, following time.Date's own overflow
// normalisation for day-of-month (e.g. 31 Jan + 1 month rolls into March).
func addMonths(d calendar.Day, delta int) calendar.Day {
	total := d.Month - 1 + delta
	year := d.Year + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	return calendar.New(year, month+1, d.Day)
}

// OnKey applies one keyboard command per spec.md §6's keyboard table,
// starting an Animating{Keyboard} eased transition toward the derived
// target offset. earliestYear is the epoch year used to convert between
// offset_days and calendar dates.
func (n *Navigator) OnKey(key string, shift, cmdOrCtrl bool, earliestYear int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelAnimationLocked()
	n.wheelActive = false

	cur := int(math.Round(n.offset))
	d0 := calendar.OffsetToDay(earliestYear, cur)

	var targetOffset float64
	switch {
	case key == "Home" || key == "T" || key == "t":
		targetOffset = float64(n.bounds.Max)
	case key == "S" || key == "s":
		targetOffset = float64(n.bounds.Min)
	case key == "ArrowLeft" && cmdOrCtrl:
		jan1 := calendar.Jan1(d0.Year)
		if d0.Compare(jan1) == 0 {
			jan1 = calendar.Jan1(d0.Year - 1)
		}
		targetOffset = float64(calendar.DayToOffset(earliestYear, jan1))
	case key == "ArrowRight" && cmdOrCtrl:
		d1 := d0.AddDays(364)
		jan1 := calendar.Jan1(d1.Year)
		if !jan1.After(d0) {
			jan1 = calendar.Jan1(d1.Year + 1)
		}
		targetOffset = float64(calendar.DayToOffset(earliestYear, jan1))
	case key == "ArrowLeft":
		months := 1
		if shift {
			months = 6
		}
		targetOffset = float64(calendar.DayToOffset(earliestYear, addMonths(d0, -months)))
	case key == "ArrowRight":
		months := 1
		if shift {
			months = 6
		}
		targetOffset = float64(calendar.DayToOffset(earliestYear, addMonths(d0, months)))
	default:
		return
	}

	targetOffset = clampF(targetOffset, float64(n.bounds.Min), float64(n.bounds.Max))
	n.startAnimationLocked(Keyboard, targetOffset, 0)
}

func cubicEaseInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := 2*t - 2
	return 0.5*f*f*f + 1
}

// Tick advances any active animation or settling wheel gesture by one
// frame. Call once per animation frame; dt is capped at 1/30s for the
// spring integrator per spec.md §4.7.
func (n *Navigator) Tick(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == Dragging && n.wheelActive {
		if now.Sub(n.lastWheelAt) >= wheelQuiescence {
			v := n.estimateVelocityLocked()
			target := clampF(n.offset-v*n.cfg.MomentumScale, float64(n.bounds.Min), float64(n.bounds.Max))
			n.wheelActive = false
			n.startAnimationLocked(Momentum, target, v)
		}
		n.lastTickAt = now
		return
	}

	if n.state != Animating {
		n.lastTickAt = now
		return
	}

	if n.animKind == Keyboard {
		dur := n.cfg.KeyboardAnimTime.Seconds()
		if dur <= 0 {
			dur = 0.3
		}
		elapsed := now.Sub(n.animStartAt).Seconds()
		t := clampF(elapsed/dur, 0, 1)
		n.offset = n.animFrom + (n.target-n.animFrom)*cubicEaseInOut(t)
		if t >= 1 {
			n.offset = n.target
			n.state = Idle
			n.animKind = AnimNone
			n.velocity = 0
		}
		n.lastTickAt = now
		return
	}

	dt := now.Sub(n.lastTickAt).Seconds()
	if dt <= 0 {
		n.lastTickAt = now
		return
	}
	const maxDt = 1.0 / 30.0
	if dt > maxDt {
		dt = maxDt
	}
	n.stepSpringLocked(dt)
	n.lastTickAt = now

	if math.Abs(n.offset-n.target) < n.cfg.Spring.MinDistance && math.Abs(n.velocity) < n.cfg.Spring.MinVelocity {
		n.offset = n.target
		n.velocity = 0
		n.state = Idle
		n.animKind = AnimNone
	}
}

// stepSpringLocked integrates one fixed timestep of semi-implicit Euler
// for the tunable {stiffness, damping, mass} spring (spec.md §4.7).
func (n *Navigator) stepSpringLocked(dt float64) {
	k := n.cfg.Spring.Stiffness
	c := n.cfg.Spring.Damping
	m := n.cfg.Spring.Mass
	if m <= 0 {
		m = 1
	}
	displacement := n.offset - n.target
	accel := (-k*displacement - c*n.velocity) / m
	n.velocity += accel * dt
	n.offset += n.velocity * dt
}
