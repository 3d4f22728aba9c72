package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hala-systems/stac-ingest-service/internal/searchstore"
)

// Writer performs single-document writes with the index bootstrap rules:
// items must never create their target index, while writing a Collection
// creates a fresh index named after it for future items.
type Writer struct {
	store            searchstore.Client
	collectionsIndex string
	logger           *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(store searchstore.Client, collectionsIndex string, logger *slog.Logger) *Writer {
	return &Writer{
		store:            store,
		collectionsIndex: collectionsIndex,
		logger:           logger,
	}
}

// WriteSingle upserts one document. For item writes the target index must
// already exist; for Collection writes a new per-collection index is
// created as a side effect.
func (w *Writer) WriteSingle(ctx context.Context, op *searchstore.WriteOperation) (*searchstore.WriteResult, error) {
	if op.Index != w.collectionsIndex {
		exists, err := w.store.IndexExists(ctx, op.Index)
		if err != nil {
			return nil, fmt.Errorf("check index %s: %w", op.Index, err)
		}
		if !exists {
			return nil, invalidIngestf("index %s does not exist, add before ingesting items", op.Index)
		}
	}

	result, err := w.store.IndexDocument(ctx, *op)
	if err != nil {
		return nil, fmt.Errorf("write document %s: %w", op.ID, err)
	}

	w.logger.DebugContext(ctx, "Wrote document", slog.String("id", op.ID))

	if op.Index == w.collectionsIndex {
		if err := w.store.CreateIndex(ctx, op.ID); err != nil {
			return nil, fmt.Errorf("bootstrap index %s: %w", op.ID, err)
		}
	}
	return result, nil
}

// WriteBulk submits all operations as one bulk request.
func (w *Writer) WriteBulk(ctx context.Context, ops []*searchstore.WriteOperation) (*searchstore.BulkResult, error) {
	flat := make([]searchstore.WriteOperation, len(ops))
	for i, op := range ops {
		flat[i] = *op
	}
	return w.store.BulkWrite(ctx, flat)
}
