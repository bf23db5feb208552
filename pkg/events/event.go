package events

import "time"

// Event type codes. The NATS subject is "knowledgebase.<code>".
const (
	TypeDocumentIngested = "document.ingested"
	TypeDocumentRemoved  = "document.removed"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "document.ingested").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func NewDocumentIngested(collection string, sources []string, parents, children int) Event {
	return BaseEvent{
		Type: TypeDocumentIngested,
		Data: map[string]interface{}{
			"collection": collection,
			"sources":    sources,
			"parents":    parents,
			"children":   children,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func NewDocumentRemoved(collection, filename string, deletedChunks, deletedParents int) Event {
	return BaseEvent{
		Type: TypeDocumentRemoved,
		Data: map[string]interface{}{
			"collection":      collection,
			"filename":        filename,
			"deleted_chunks":  deletedChunks,
			"deleted_parents": deletedParents,
		},
		OccurredAt: time.Now().UTC(),
	}
}
