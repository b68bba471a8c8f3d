package callsession

import "fmt"

// Status is the primary state of one call session.
//
// idle -> connecting -> active -> ending -> idle, with error paths from
// connecting and active straight back to idle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusEnding     Status = "ending"
)

// genericCallError is the one message shown to users for any transport or
// gate failure. Detail stays in logs.
const genericCallError = "Call error occurred. Please try again."

// Snapshot is the full externally-visible session state. UI rendering is a
// pure projection of this value; nothing else is shared.
type Snapshot struct {
	Status  Status
	Talking bool

	// Used and Max mirror the server-side daily quota for display and for
	// the local start guard. The gate re-checks authoritatively.
	Used int
	Max  int

	RemainingSeconds   int
	MaxDurationSeconds int

	// Err is the last failure message, cleared on the next start.
	Err string
}

// CanStart reports whether the start action should be offered.
func (s Snapshot) CanStart() bool {
	return s.Status == StatusIdle && s.Used < s.Max
}

// QuotaExhausted reports whether the local quota mirror is used up.
func (s Snapshot) QuotaExhausted() bool {
	return s.Used >= s.Max
}

// FormatRemaining renders the countdown as m:ss.
func (s Snapshot) FormatRemaining() string {
	sec := s.RemainingSeconds
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

// transition is the pure mapping from (state, event) to next state. Side
// effects (timer management, transport stop requests) belong to the
// Controller so this stays testable without a live transport.
func transition(s Snapshot, ev Event) Snapshot {
	switch ev.Type {
	case EventCallStarted:
		if s.Status == StatusConnecting {
			s.Status = StatusActive
			s.Err = ""
			s.RemainingSeconds = s.MaxDurationSeconds
		}

	case EventCallEnded:
		switch s.Status {
		case StatusConnecting, StatusActive, StatusEnding:
			s.Status = StatusIdle
			s.Used++
			s.RemainingSeconds = s.MaxDurationSeconds
			s.Talking = false
		}

	case EventError:
		// Errors during teardown also return to idle; only a clean
		// call_ended counts against the quota mirror.
		switch s.Status {
		case StatusConnecting, StatusActive, StatusEnding:
			s.Status = StatusIdle
			s.Err = genericCallError
			s.RemainingSeconds = s.MaxDurationSeconds
			s.Talking = false
		}

	case EventAgentStartTalking:
		s.Talking = true

	case EventAgentStopTalking:
		s.Talking = false
	}

	return s
}
