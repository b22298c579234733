package protocol

// Event type names emitted on a turn's stream.
const (
	EventSessionCreated = "session_created"
	EventStageSwitch    = "stage_switch"
	EventThinkingStep   = "thinking_step"
	EventChunk          = "chunk"
	EventCancelled      = "cancelled"
	EventError          = "error"
	EventComplete       = "complete"
	EventDone           = "done"
)

// Event is one record on a turn's event stream. Exactly one of the terminal
// types (complete, cancelled, error) appears per turn; done is a
// transport-level sentinel appended by the emitter adapter.
type Event struct {
	Type           string      `json:"type"`
	Data           interface{} `json:"data,omitempty"`
	Message        string      `json:"message,omitempty"`
	SessionID      string      `json:"session_id,omitempty"`
	StepsCompleted int         `json:"steps_completed,omitempty"`
	Stage          string      `json:"stage,omitempty"`
}

func SessionCreated(sessionID string) Event {
	return Event{Type: EventSessionCreated, SessionID: sessionID}
}

func StageSwitch(stage string) Event {
	return Event{Type: EventStageSwitch, Data: map[string]string{"stage": stage}}
}

func ThinkingStepEvent(step ThinkingStep) Event {
	return Event{Type: EventThinkingStep, Data: step}
}

func Chunk(text string) Event {
	return Event{Type: EventChunk, Data: text}
}

func Cancelled(message string, stepsCompleted int, stage string) Event {
	return Event{Type: EventCancelled, Message: message, StepsCompleted: stepsCompleted, Stage: stage}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

func Complete(resp *ChatResponse) Event {
	return Event{Type: EventComplete, Data: resp}
}

func Done() Event {
	return Event{Type: EventDone}
}

// IsTerminal reports whether the event ends a turn.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventComplete, EventCancelled, EventError:
		return true
	}
	return false
}
