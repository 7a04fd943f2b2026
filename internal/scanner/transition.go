package scanner

import (
	"fmt"

	"github.com/nerrad567/autoscan-core/internal/barcode"
)

// Scan is a classified payload waiting for its partner.
type Scan struct {
	Payload string
	Kind    barcode.Kind
}

// Outcome is the result of feeding one scan to the state machine.
type Outcome int

const (
	// Stored means there was nothing pending and the scan now is.
	Stored Outcome = iota

	// Replaced means the scan took the place of the pending one.
	Replaced

	// Completed means a pair is ready and nothing is left pending.
	Completed

	// CompletedKeepPending means a pair is ready and the multi-item
	// location stays pending for the next identifier.
	CompletedKeepPending

	// Rejected means the payload was not recognised. State is unchanged.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Replaced:
		return "replaced"
	case Completed:
		return "completed"
	case CompletedKeepPending:
		return "completed_keep_pending"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// IsCompleted reports whether o carries a pair.
func (o Outcome) IsCompleted() bool {
	return o == Completed || o == CompletedKeepPending
}

// TimerAction says what to do with the device's scan-timeout timer.
type TimerAction int

const (
	TimerKeep TimerAction = iota
	TimerArm
	TimerDisarm
)

func (a TimerAction) String() string {
	switch a {
	case TimerKeep:
		return "keep"
	case TimerArm:
		return "arm"
	case TimerDisarm:
		return "disarm"
	default:
		return fmt.Sprintf("timer_action(%d)", int(a))
	}
}

// Pair is a completed scan pair. An empty Location clears the
// identifier's location.
type Pair struct {
	Identifier string
	Location   string
}

// Step is everything Transition decided.
type Step struct {
	Outcome Outcome
	Pending *Scan
	Timer   TimerAction
	Pair    *Pair
}

// Transition feeds a classified payload to a device's pending scan.
//
// Scanning the same identifier twice clears its location. An identifier
// after a multi-item location completes a pair and, with retainMulti,
// keeps the location pending and restarts its timer.
func Transition(pending *Scan, kind barcode.Kind, payload string, retainMulti bool) Step {
	if kind == barcode.Unrecognized {
		return Step{Outcome: Rejected, Pending: pending, Timer: TimerKeep}
	}

	next := &Scan{Payload: payload, Kind: kind}

	if pending == nil {
		return Step{Outcome: Stored, Pending: next, Timer: TimerArm}
	}
	if kind.IsLocation() {
		return Step{Outcome: Replaced, Pending: next, Timer: TimerArm}
	}

	switch pending.Kind {
	case barcode.Identifier:
		if pending.Payload == payload {
			return Step{
				Outcome: Completed,
				Timer:   TimerDisarm,
				Pair:    &Pair{Identifier: payload},
			}
		}
		return Step{Outcome: Replaced, Pending: next, Timer: TimerArm}

	case barcode.Location:
		return Step{
			Outcome: Completed,
			Timer:   TimerDisarm,
			Pair:    &Pair{Identifier: payload, Location: pending.Payload},
		}

	case barcode.MultiLocation:
		pair := &Pair{Identifier: payload, Location: pending.Payload}
		if retainMulti {
			return Step{Outcome: CompletedKeepPending, Pending: pending, Timer: TimerArm, Pair: pair}
		}
		return Step{Outcome: Completed, Timer: TimerDisarm, Pair: pair}

	default:
		return Step{Outcome: Replaced, Pending: next, Timer: TimerArm}
	}
}
