package types

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType names a domain change published to the message broker.
type EventType string

const (
	EventUserRegistered  EventType = "user.registered"
	EventPasswordChanged EventType = "user.password_changed"
	EventTodoCreated     EventType = "todo.created"
	EventTodoUpdated     EventType = "todo.updated"
	EventTodoDeleted     EventType = "todo.deleted"
)

// Resource is the kind of record the event is about, e.g. "todo".
func (t EventType) Resource() string {
	kind, _, _ := strings.Cut(string(t), ".")
	return kind
}

// Event is the broker payload. Data holds the JSON form of the affected
// record, or nothing for deletions.
type Event struct {
	Type       EventType       `json:"type"`
	ActorID    int             `json:"actor_id"`
	ResourceID int             `json:"resource_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}
