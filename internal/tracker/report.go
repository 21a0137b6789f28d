package tracker

import (
	"time"

	"github.com/skytether/libration/internal/frame"
	"github.com/skytether/libration/pkg/vec"
)

// State is the tracker's capture state.
type State uint8

const (
	// Idle holds no capture.
	Idle State = iota
	// Tracking holds a capture and reprojects it on every valid tick.
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "idle"
}

// Outcome classifies what a tick did.
type Outcome uint8

const (
	OutcomeThrottled Outcome = iota
	OutcomePaused
	OutcomeStatic
	OutcomeDegenerate
	OutcomeCaptured
	OutcomeProjected
)

var outcomeNames = [...]string{
	OutcomeThrottled:  "throttled",
	OutcomePaused:     "paused",
	OutcomeStatic:     "static",
	OutcomeDegenerate: "degenerate",
	OutcomeCaptured:   "captured",
	OutcomeProjected:  "projected",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Pushed reports whether a pose was written to the host.
func (o Outcome) Pushed() bool {
	return o == OutcomeCaptured || o == OutcomeProjected
}

// TickReport describes one processed (not throttled) tick.
type TickReport struct {
	Seq      uint64
	Wall     time.Time
	SimTime  float64
	SimDelta float64
	State    State
	Outcome  Outcome
	Frames   frame.Pair
	// Origin is body A's current position, zero when the tick paused.
	Origin vec.Vec3
	Tied   TiedPose
	// Pose is the pose pushed to the host, in object units. Zero unless
	// Outcome.Pushed().
	Pose Pose
}

// Observer receives a report after every processed tick. It is called
// synchronously from OnTick and must not block.
type Observer interface {
	ObserveTick(r TickReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(TickReport)

// ObserveTick calls f(r).
func (f ObserverFunc) ObserveTick(r TickReport) {
	f(r)
}
