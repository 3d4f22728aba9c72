// Package main implements the index-init Lambda handler, which provisions
// the collections index before the first ingest runs.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hala-systems/stac-ingest-service/internal/logging"
	"github.com/hala-systems/stac-ingest-service/internal/searchstore"
)

var logger = logging.New()

// defaultCollectionsIndex matches the ingest handler's default.
const defaultCollectionsIndex = "collections"

// IndexBootstrapper creates indices if they are not already present.
type IndexBootstrapper interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string) error
}

// handler provisions the collections index.
type handler struct {
	store            IndexBootstrapper
	collectionsIndex string
}

// handle creates the collections index unless it already exists.
func (h *handler) handle(ctx context.Context) error {
	exists, err := h.store.IndexExists(ctx, h.collectionsIndex)
	if err != nil {
		return err
	}
	if exists {
		logger.InfoContext(ctx, "Index already exists", slog.String("index", h.collectionsIndex))
		return nil
	}
	return h.store.CreateIndex(ctx, h.collectionsIndex)
}

func main() {
	collectionsIndex := os.Getenv("COLLECTIONS_INDEX")
	if collectionsIndex == "" {
		collectionsIndex = defaultCollectionsIndex
	}

	searchURL := os.Getenv("SEARCH_INDEX_URL")
	if searchURL == "" {
		logger.Error("FATAL: Required environment variable not set", slog.String("name", "SEARCH_INDEX_URL"))
		panic("required environment variable not set: SEARCH_INDEX_URL")
	}

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{searchURL},
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		logger.Error("FATAL: Failed to create search client", slog.String("error", err.Error()))
		panic(err)
	}

	h := &handler{
		store:            searchstore.NewESClient(esClient, logger),
		collectionsIndex: collectionsIndex,
	}
	lambda.Start(h.handle)
}
