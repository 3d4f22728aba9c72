package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/hala-systems/stac-ingest-service/internal/ingest"
)

// EventBridgeAPI abstracts EventBridge operations for dependency inversion.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// PublisherConfig carries the deployment identity stamped onto every event.
type PublisherConfig struct {
	BusName      string
	ProducerName string
	Tags         Tags
}

// Publisher publishes ingestion-completed events to an event bus. Every
// event in a batch is schema-validated before any is submitted; per-entry
// delivery failures after submission are logged, not raised.
type Publisher struct {
	client EventBridgeAPI
	config PublisherConfig
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(client EventBridgeAPI, config PublisherConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		config: config,
		logger: logger,
	}
}

// Publish wraps each order result in a completion event, validates the
// whole batch, and submits it as one PutEvents call. Validation failure of
// any event aborts the entire publish.
func (p *Publisher) Publish(ctx context.Context, results []ingest.OrderResult) error {
	if len(results) == 0 {
		return nil
	}

	events := make([]Event, len(results))
	for i, result := range results {
		events[i] = NewEvent(p.config.ProducerName, p.config.Tags, result)
	}

	if err := ValidateEvents(events); err != nil {
		return fmt.Errorf("publish completion events: %w", err)
	}

	entries := make([]types.PutEventsRequestEntry, len(events))
	for i, event := range events {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", event.FlowID, err)
		}
		entries[i] = types.PutEventsRequestEntry{
			EventBusName: aws.String(p.config.BusName),
			Source:       aws.String(EventSource),
			DetailType:   aws.String(EventDetailType),
			Detail:       aws.String(string(detail)),
			Resources:    []string{},
		}
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("put events to %s: %w", p.config.BusName, err)
	}

	for _, entry := range out.Entries {
		if entry.ErrorMessage != nil {
			p.logger.ErrorContext(ctx, "Failed to write event",
				slog.String("bus", p.config.BusName),
				slog.String("error", aws.ToString(entry.ErrorMessage)),
			)
			continue
		}
		p.logger.InfoContext(ctx, "Wrote event",
			slog.String("bus", p.config.BusName),
			slog.String("event_id", aws.ToString(entry.EventId)),
		)
	}
	return nil
}
