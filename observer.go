package pdfseal

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Phase is a state of the signing state machine.
type Phase int

const (
	Idle Phase = iota
	Validating
	Estimating
	Reserved
	Signing
	Padding
	Committing
	Done
	// Rejected is terminal: the request was invalid and nothing was written.
	Rejected
	// Failed is terminal: a later step errored and the destination, if
	// created, has been removed.
	Failed
)

var phaseNames = [...]string{
	Idle:       "idle",
	Validating: "validating",
	Estimating: "estimating",
	Reserved:   "reserved",
	Signing:    "signing",
	Padding:    "padding",
	Committing: "committing",
	Done:       "done",
	Rejected:   "rejected",
	Failed:     "failed",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "Phase(" + strconv.Itoa(int(p)) + ")"
}

// PhaseReport is emitted on every transition of a signing operation.
type PhaseReport struct {
	OperationID string
	Phase       Phase
	// Elapsed is the time since the operation started.
	Elapsed time.Duration
	// Err is set on the terminal failure report and on warnings.
	Err   error
	Attrs map[string]interface{}
}

// Warning reports whether the report carries a non-fatal error.
func (r PhaseReport) Warning() bool {
	return r.Err != nil && r.Phase != Rejected && r.Phase != Failed
}

// Observer receives the phase reports of signing operations. Reports of one
// operation are delivered in order from the signing goroutine.
type Observer interface {
	Report(PhaseReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(PhaseReport)

// Report calls f(r).
func (f ObserverFunc) Report(r PhaseReport) { f(r) }

// LogObserver renders phase reports as zerolog events.
type LogObserver struct {
	Logger zerolog.Logger
}

// Report implements Observer.
func (o LogObserver) Report(r PhaseReport) {
	var ev *zerolog.Event
	switch {
	case r.Phase == Rejected || r.Phase == Failed:
		ev = o.Logger.Error()
	case r.Warning():
		ev = o.Logger.Warn()
	case r.Phase == Done:
		ev = o.Logger.Info()
	default:
		ev = o.Logger.Debug()
	}

	ev = ev.Str("operation", r.OperationID).
		Stringer("phase", r.Phase).
		Dur("elapsed", r.Elapsed)
	if r.Err != nil {
		ev = ev.Err(r.Err)
	}
	if len(r.Attrs) > 0 {
		ev = ev.Fields(r.Attrs)
	}
	ev.Msg("signing " + r.Phase.String())
}
