package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the lifecycle events of an import session
type EventType string

const (
	EventImportStarted   EventType = "import.started"
	EventImportCompleted EventType = "import.completed"
	EventImportFailed    EventType = "import.failed"
	EventImportAborted   EventType = "import.aborted"
)

const (
	eventSource  = "vrp-import-service"
	eventVersion = "1.0"
)

// ImportEvent is the envelope of every import lifecycle event
type ImportEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type ImportStartedEvent struct {
	SessionID string    `json:"session_id"`
	Owner     string    `json:"owner"`
	TableType string    `json:"table_type"`
	FileName  string    `json:"file_name"`
	TotalRows int       `json:"total_rows"`
	StartedAt time.Time `json:"started_at"`
}

// ImportFinishedEvent is the payload of completed, failed and aborted events
type ImportFinishedEvent struct {
	SessionID        string    `json:"session_id"`
	Owner            string    `json:"owner"`
	TableType        string    `json:"table_type"`
	Status           string    `json:"status"`
	TotalRows        int       `json:"total_rows"`
	Processed        int       `json:"processed"`
	Successful       int       `json:"successful"`
	Errored          int       `json:"errored"`
	Skipped          int       `json:"skipped"`
	LocationsCreated int       `json:"locations_created"`
	FinishedAt       time.Time `json:"finished_at"`
}

func NewImportStartedEvent(data ImportStartedEvent) *ImportEvent {
	return newEvent(EventImportStarted, data)
}

// NewImportFinishedEvent picks the event type from the terminal status
func NewImportFinishedEvent(data ImportFinishedEvent) *ImportEvent {
	eventType := EventImportCompleted
	switch data.Status {
	case "failed":
		eventType = EventImportFailed
	case "aborted":
		eventType = EventImportAborted
	}
	return newEvent(eventType, data)
}

func newEvent(eventType EventType, data interface{}) *ImportEvent {
	return &ImportEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// GenerateEventID returns a random event id
func GenerateEventID() string {
	return uuid.NewString()
}
