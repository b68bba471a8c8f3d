package callsession

// EventType is the closed set of lifecycle events the voice transport emits.
type EventType string

const (
	EventCallStarted       EventType = "call_started"
	EventCallEnded         EventType = "call_ended"
	EventAgentStartTalking EventType = "agent_start_talking"
	EventAgentStopTalking  EventType = "agent_stop_talking"
	EventError             EventType = "error"
)

// Event is one tagged lifecycle event.
type Event struct {
	Type EventType

	// Message carries transport error detail. Logged, never shown to the
	// user directly.
	Message string
}
