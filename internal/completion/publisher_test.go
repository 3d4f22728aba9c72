package completion

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"

	"github.com/hala-systems/stac-ingest-service/internal/ingest"
)

// mockEventBridge implements EventBridgeAPI for testing.
type mockEventBridge struct {
	putFunc func(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
	inputs  []*eventbridge.PutEventsInput
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.putFunc != nil {
		return m.putFunc(ctx, params, optFns...)
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func testConfig() PublisherConfig {
	return PublisherConfig{
		BusName:      "post-ingest",
		ProducerName: "stac-ingest-service",
		Tags:         Tags{Account: "fabric-staging", Stage: "staging", DeployVersion: "3.9.0"},
	}
}

func TestPublish_Success(t *testing.T) {
	mock := &mockEventBridge{
		putFunc: func(_ context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
			return &eventbridge.PutEventsOutput{
				Entries: []types.PutEventsResultEntry{{EventId: aws.String("eid-1")}},
			}, nil
		},
	}
	p := NewPublisher(mock, testConfig(), slog.New(slog.DiscardHandler))

	orderID := uuid.NewString()
	err := p.Publish(context.Background(), []ingest.OrderResult{
		{OrderID: orderID, Status: ingest.StatusSuccess},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.inputs) != 1 || len(mock.inputs[0].Entries) != 1 {
		t.Fatalf("inputs = %+v", mock.inputs)
	}
	entry := mock.inputs[0].Entries[0]
	if aws.ToString(entry.EventBusName) != "post-ingest" {
		t.Errorf("bus = %q", aws.ToString(entry.EventBusName))
	}
	if aws.ToString(entry.Source) != "stac.ingest.lambda" {
		t.Errorf("source = %q", aws.ToString(entry.Source))
	}
	if aws.ToString(entry.DetailType) != "StacIngestCompleted" {
		t.Errorf("detailType = %q", aws.ToString(entry.DetailType))
	}
	if len(entry.Resources) != 0 {
		t.Errorf("resources = %v, want empty", entry.Resources)
	}

	var event Event
	if err := json.Unmarshal([]byte(aws.ToString(entry.Detail)), &event); err != nil {
		t.Fatalf("parse detail: %v", err)
	}
	if event.Payload.OrderID != orderID || event.FlowID != orderID {
		t.Errorf("event = %+v", event)
	}
}

func TestPublish_ValidationFailureAbortsWholeBatch(t *testing.T) {
	mock := &mockEventBridge{}
	p := NewPublisher(mock, testConfig(), slog.New(slog.DiscardHandler))

	err := p.Publish(context.Background(), []ingest.OrderResult{
		{OrderID: uuid.NewString(), Status: ingest.StatusSuccess},
		{OrderID: uuid.NewString(), Status: ingest.StatusFail}, // no message
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := AsValidationError(err); !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(mock.inputs) != 0 {
		t.Error("events were published despite validation failure")
	}
}

func TestPublish_EntryErrorLoggedNotRaised(t *testing.T) {
	mock := &mockEventBridge{
		putFunc: func(_ context.Context, _ *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
			return &eventbridge.PutEventsOutput{
				FailedEntryCount: 1,
				Entries: []types.PutEventsResultEntry{
					{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")},
					{EventId: aws.String("eid-2")},
				},
			}, nil
		},
	}
	p := NewPublisher(mock, testConfig(), slog.New(slog.DiscardHandler))

	err := p.Publish(context.Background(), []ingest.OrderResult{
		{OrderID: uuid.NewString(), Status: ingest.StatusSuccess},
		{OrderID: uuid.NewString(), Status: ingest.StatusSuccess},
	})
	if err != nil {
		t.Fatalf("per-entry failure raised: %v", err)
	}
}

func TestPublish_TransportError(t *testing.T) {
	wantErr := errors.New("bus unreachable")
	mock := &mockEventBridge{
		putFunc: func(_ context.Context, _ *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
			return nil, wantErr
		},
	}
	p := NewPublisher(mock, testConfig(), slog.New(slog.DiscardHandler))

	err := p.Publish(context.Background(), []ingest.OrderResult{
		{OrderID: uuid.NewString(), Status: ingest.StatusSuccess},
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want transport error", err)
	}
}

func TestPublish_Empty(t *testing.T) {
	mock := &mockEventBridge{}
	p := NewPublisher(mock, testConfig(), slog.New(slog.DiscardHandler))
	if err := p.Publish(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 0 {
		t.Error("PutEvents called for empty batch")
	}
}
