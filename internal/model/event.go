package model

import (
	"time"
)

// EventRequest represents an incoming event payload.
type EventRequest struct {
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Timestamp  int64          `json:"timestamp"`
	Properties map[string]any `json:"properties"`
}

// Event is the domain model persisted in the event store.
type Event struct {
	UUID       string
	TeamID     int64
	Event      string
	DistinctID string
	Timestamp  time.Time
	Properties map[string]any
}

// EventResult reports the outcome of an ingestion call.
type EventResult struct {
	Status string `json:"status"`
}
