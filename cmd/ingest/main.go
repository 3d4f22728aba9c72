// Package main implements the ingest Lambda handler: it flattens trigger
// payloads into catalog objects, indexes them, and reports per-order
// outcomes to the post-ingest event bus.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/hala-systems/stac-ingest-service/internal/completion"
	"github.com/hala-systems/stac-ingest-service/internal/ingest"
	"github.com/hala-systems/stac-ingest-service/internal/logging"
	"github.com/hala-systems/stac-ingest-service/internal/postingest"
	"github.com/hala-systems/stac-ingest-service/internal/resolver"
	"github.com/hala-systems/stac-ingest-service/internal/searchstore"
	"github.com/hala-systems/stac-ingest-service/internal/stac"
	"github.com/hala-systems/stac-ingest-service/internal/unwrap"
)

var logger = logging.New()

// errItemsFailed signals the trigger's redelivery mechanism that the batch
// needs another attempt, even though results were already reported.
// Downstream writes are idempotent upserts, so re-processing is safe.
var errItemsFailed = errors.New("there was at least one error ingesting items")

// defaultCollectionsIndex is the index Collection objects are written to.
const defaultCollectionsIndex = "collections"

// PayloadUnwrapper flattens trigger payloads into catalog objects.
type PayloadUnwrapper interface {
	UnwrapEvent(ctx context.Context, event events.SQSEvent) (*unwrap.Batch, error)
	UnwrapObject(obj stac.CatalogObject) *unwrap.Batch
}

// ItemIngester drives objects through normalization and index writes.
type ItemIngester interface {
	IngestItems(ctx context.Context, objs []stac.CatalogObject) []ingest.ItemResult
}

// CompletionPublisher reports per-order outcomes to the event bus.
type CompletionPublisher interface {
	Publish(ctx context.Context, results []ingest.OrderResult) error
}

// ResultNotifier fans per-item outcomes out to downstream subscribers.
type ResultNotifier interface {
	PublishResults(ctx context.Context, results []ingest.ItemResult)
}

// handler implements the ingest Lambda logic.
type handler struct {
	unwrapper   PayloadUnwrapper
	ingester    ItemIngester
	completions CompletionPublisher
	notifier    ResultNotifier // nil when no post-ingest topic is configured
}

// newHandler creates a new handler.
func newHandler(unwrapper PayloadUnwrapper, ingester ItemIngester, completions CompletionPublisher, notifier ResultNotifier) *handler {
	return &handler{
		unwrapper:   unwrapper,
		ingester:    ingester,
		completions: completions,
		notifier:    notifier,
	}
}

// handle processes one trigger invocation: either an SQS event or a single
// inline catalog object (direct invocation).
func (h *handler) handle(ctx context.Context, raw json.RawMessage) error {
	tracer := otel.Tracer("stac-ingest")
	ctx, span := tracer.Start(ctx, "IngestHandler")
	defer span.End()

	batch, err := h.unwrapBatch(ctx, raw)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to unwrap trigger payload", slog.String("error", err.Error()))
		return err
	}

	logger.DebugContext(ctx, "Attempting to ingest items", slog.Int("count", len(batch.Objects)))

	results := h.ingester.IngestItems(ctx, batch.Objects)

	errorCount := 0
	for _, result := range results {
		if result.Err != nil {
			errorCount++
		}
	}
	logger.InfoContext(ctx, "Ingest batch completed",
		slog.Int("total", len(results)),
		slog.Int("failures", errorCount),
	)

	if h.notifier != nil {
		h.notifier.PublishResults(ctx, results)
	}

	orderResults := ingest.OrderResults(batch.Orders, results)
	if len(orderResults) > 0 {
		logger.InfoContext(ctx, "Sending order results", slog.Int("orders", len(orderResults)))
		if err := h.completions.Publish(ctx, orderResults); err != nil {
			logger.ErrorContext(ctx, "Failed to publish order results", slog.String("error", err.Error()))
			return err
		}
	}

	if errorCount > 0 {
		return errItemsFailed
	}
	return nil
}

// unwrapBatch classifies the raw invocation payload: an object with a
// Records field is an SQS event, anything else is one inline catalog object.
func (h *handler) unwrapBatch(ctx context.Context, raw json.RawMessage) (*unwrap.Batch, error) {
	var probe struct {
		Records []events.SQSMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Records != nil {
		return h.unwrapper.UnwrapEvent(ctx, events.SQSEvent{Records: probe.Records})
	}

	var obj stac.CatalogObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return h.unwrapper.UnwrapObject(obj), nil
}

// requireEnv reads an environment variable that must be set.
func requireEnv(name string) string {
	value := os.Getenv(name)
	if value == "" {
		logger.Error("FATAL: Required environment variable not set", slog.String("name", name))
		panic("required environment variable not set: " + name)
	}
	return value
}

func main() {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}

	collectionsIndex := os.Getenv("COLLECTIONS_INDEX")
	if collectionsIndex == "" {
		collectionsIndex = defaultCollectionsIndex
	}

	instrumented := otelhttp.NewTransport(http.DefaultTransport)

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{requireEnv("SEARCH_INDEX_URL")},
		Transport: instrumented,
	})
	if err != nil {
		logger.Error("FATAL: Failed to create search client", slog.String("error", err.Error()))
		panic(err)
	}
	store := searchstore.NewESClient(esClient, logger)

	multiResolver := resolver.NewMultiResolver(
		s3.NewFromConfig(awsCfg),
		&http.Client{Transport: instrumented},
	)

	normalizer := ingest.NewNormalizer(store, collectionsIndex)
	writer := ingest.NewWriter(store, collectionsIndex, logger)
	orchestrator := ingest.NewOrchestrator(normalizer, writer, logger)

	completions := completion.NewPublisher(
		eventbridge.NewFromConfig(awsCfg),
		completion.PublisherConfig{
			BusName:      requireEnv("POST_INGEST_EVENT_BUS_NAME"),
			ProducerName: "stac-ingest-service",
			Tags: completion.Tags{
				Account:       requireEnv("ACCOUNT_NAME"),
				Stage:         requireEnv("DEPLOY_STAGE"),
				DeployVersion: requireEnv("DEPLOY_VERSION"),
			},
		},
		logger,
	)

	var notifier ResultNotifier
	if topicARN := os.Getenv("POST_INGEST_TOPIC_ARN"); topicARN != "" {
		notifier = postingest.NewPublisher(sns.NewFromConfig(awsCfg), topicARN, logger)
	} else {
		logger.Info("Skipping post-ingest notification since no topic is configured")
	}

	h := newHandler(unwrap.New(multiResolver), orchestrator, completions, notifier)
	lambda.Start(h.handle)
}
