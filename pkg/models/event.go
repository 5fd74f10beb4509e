package models

import "time"

// EventType indicates what kind of source produced a ready-channel item.
type EventType string

const (
	EventTypeMqtt   EventType = "mqtt"
	EventTypeHTTP   EventType = "http"
	EventTypeWatch  EventType = "watch"
	EventTypeTime   EventType = "time"
	EventTypeManual EventType = "manual" // CLI trigger
	EventTypeChain  EventType = "chain"  // enqueued as a next_event successor
)

// MetadataRequestID is the Payload.Metadata key httplisten stamps onto the
// payload it fires so the dispatcher can notify it back once the chain
// carrying that request terminates (see DESIGN.md's Open Question 3).
const MetadataRequestID = "_request_id"

// Event is one item on the ready channel: the name of the event definition
// to dispatch, together with the payload it carries into that dispatch.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceID  string    `json:"source_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}
