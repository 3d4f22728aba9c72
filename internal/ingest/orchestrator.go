package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hala-systems/stac-ingest-service/internal/searchstore"
	"github.com/hala-systems/stac-ingest-service/internal/stac"
)

// ItemResult records the outcome of one object's ingestion attempt. Exactly
// one of Outcome and Err is set once the attempt completes.
type ItemResult struct {
	Object  stac.CatalogObject
	Op      *searchstore.WriteOperation
	Outcome *searchstore.WriteResult
	Err     error
}

// FailedID returns the id to report for this result in error messages: the
// sanitized document id when normalization got that far, the raw object id
// otherwise.
func (r *ItemResult) FailedID() string {
	if r.Op != nil {
		return r.Op.ID
	}
	return r.Object.ID()
}

// ObjectConverter turns a catalog object into a write operation.
type ObjectConverter interface {
	Convert(ctx context.Context, obj stac.CatalogObject) (*searchstore.WriteOperation, error)
}

// SingleWriter performs one document write.
type SingleWriter interface {
	WriteSingle(ctx context.Context, op *searchstore.WriteOperation) (*searchstore.WriteResult, error)
}

// Orchestrator ingests a flat object sequence one object at a time. Writes
// are intentionally sequential: the created/updated timestamp derivation
// and order aggregation both rely on a stable write order within one
// invocation.
type Orchestrator struct {
	converter ObjectConverter
	writer    SingleWriter
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(converter ObjectConverter, writer SingleWriter, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		converter: converter,
		writer:    writer,
		logger:    logger,
	}
}

// IngestItems processes the objects in order, producing one result per
// object in the same order. A failing object never aborts its siblings.
func (o *Orchestrator) IngestItems(ctx context.Context, objs []stac.CatalogObject) []ItemResult {
	results := make([]ItemResult, 0, len(objs))
	for _, obj := range objs {
		result := ItemResult{Object: obj}

		op, err := o.converter.Convert(ctx, obj)
		if err == nil {
			result.Op = op
			result.Outcome, err = o.writer.WriteSingle(ctx, op)
		}
		result.Err = err

		o.logResult(ctx, &result)
		results = append(results, result)
	}
	return results
}

// logResult logs one outcome. Invalid objects are a sender problem, not a
// system problem, so they log at warn rather than error.
func (o *Orchestrator) logResult(ctx context.Context, r *ItemResult) {
	if r.Err == nil {
		o.logger.DebugContext(ctx, "Ingested item", slog.String("id", r.Op.ID))
		return
	}

	var invalid *InvalidIngestError
	if errors.As(r.Err, &invalid) {
		o.logger.WarnContext(ctx, "Invalid ingest item",
			slog.String("id", r.FailedID()),
			slog.String("error", r.Err.Error()),
		)
		return
	}
	o.logger.ErrorContext(ctx, "Error while ingesting item",
		slog.String("id", r.FailedID()),
		slog.String("error", r.Err.Error()),
	)
}
