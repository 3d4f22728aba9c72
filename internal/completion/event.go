// Package completion builds, validates, and publishes the events that
// report ingestion outcomes back to ordering systems.
package completion

import (
	"github.com/hala-systems/stac-ingest-service/internal/ingest"
)

// Fixed envelope fields of every completion event.
const (
	EventType       = "IngestCompleted"
	EventVersion    = "1.0.0"
	EventSource     = "stac.ingest.lambda"
	EventDetailType = "StacIngestCompleted"
)

// Tags identify the deployment that produced an event.
type Tags struct {
	Account       string `json:"account"`
	Stage         string `json:"stage"`
	DeployVersion string `json:"deployVersion"`
	Test          bool   `json:"test,omitempty"`
}

// Event is one schema-validated ingestion-completed event.
type Event struct {
	EventType    string             `json:"eventType"`
	ProducerName string             `json:"producerName"`
	Version      string             `json:"version"`
	Tags         Tags               `json:"tags"`
	Payload      ingest.OrderResult `json:"payload"`
	FlowID       string             `json:"flowId"`
}

// NewEvent wraps one order result in the completion event envelope. The
// order id doubles as the flow id so related events can be correlated.
func NewEvent(producerName string, tags Tags, result ingest.OrderResult) Event {
	return Event{
		EventType:    EventType,
		ProducerName: producerName,
		Version:      EventVersion,
		Tags:         tags,
		Payload:      result,
		FlowID:       result.OrderID,
	}
}
