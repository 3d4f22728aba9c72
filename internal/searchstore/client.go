// Package searchstore provides the search index operations the ingest
// pipeline needs, backed by Elasticsearch.
package searchstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// defaultDocType is the mapping type recorded on bulk action descriptors.
const defaultDocType = "_doc"

// WriteOperation is one index mutation derived from a catalog object.
type WriteOperation struct {
	Index           string
	ID              string
	Action          string
	Parent          string
	RetryOnConflict int
	Body            any
}

// WriteResult is the outcome of a single-document write.
type WriteResult struct {
	Result string // "created" or "updated"
}

// BulkResult is the engine-level outcome of a bulk submission.
type BulkResult struct {
	Errors bool
	Took   int
}

// Client is the search index surface consumed by the ingest pipeline.
type Client interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string) error
	GetCreatedTimestamp(ctx context.Context, index, id string) (string, error)
	IndexDocument(ctx context.Context, op WriteOperation) (*WriteResult, error)
	BulkWrite(ctx context.Context, ops []WriteOperation) (*BulkResult, error)
}

// ESClient implements Client against an Elasticsearch cluster.
type ESClient struct {
	es     *elasticsearch.Client
	logger *slog.Logger
}

// NewESClient creates an ESClient.
func NewESClient(es *elasticsearch.Client, logger *slog.Logger) *ESClient {
	return &ESClient{es: es, logger: logger}
}

// IndexExists reports whether the named index exists.
func (c *ESClient) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists(
		[]string{name},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("indices exists %s: %w", name, err)
	}
	defer drain(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("indices exists %s: unexpected status %d", name, res.StatusCode)
	}
}

// CreateIndex creates a new index with default settings.
func (c *ESClient) CreateIndex(ctx context.Context, name string) error {
	res, err := c.es.Indices.Create(
		name,
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer drain(res)

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", name, res.String())
	}

	c.logger.InfoContext(ctx, "Created index", slog.String("index", name))
	return nil
}

// GetCreatedTimestamp point-reads the stored properties.created value for a
// document. An absent document (or absent index) returns "".
func (c *ESClient) GetCreatedTimestamp(ctx context.Context, index, id string) (string, error) {
	res, err := c.es.Get(
		index, id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", index, id, err)
	}
	defer drain(res)

	if res.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if res.IsError() {
		return "", fmt.Errorf("get %s/%s: unexpected status %d", index, id, res.StatusCode)
	}

	var doc struct {
		Source struct {
			Properties struct {
				Created string `json:"created"`
			} `json:"properties"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode get %s/%s: %w", index, id, err)
	}
	return doc.Source.Properties.Created, nil
}

// IndexDocument upserts one document by id.
func (c *ESClient) IndexDocument(ctx context.Context, op WriteOperation) (*WriteResult, error) {
	body, err := json.Marshal(op.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", op.ID, err)
	}

	res, err := c.es.Index(
		op.Index,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(op.ID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("index %s/%s: %w", op.Index, op.ID, err)
	}
	defer drain(res)

	if res.IsError() {
		return nil, fmt.Errorf("index %s/%s: %s", op.Index, op.ID, res.String())
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode index response %s/%s: %w", op.Index, op.ID, err)
	}

	c.logger.DebugContext(ctx, "Wrote document",
		slog.String("index", op.Index),
		slog.String("id", op.ID),
		slog.String("result", out.Result),
	)
	return &WriteResult{Result: out.Result}, nil
}

// BulkWrite submits all operations as one bulk request. An errors indicator
// in the engine response is logged, not returned as an error; callers
// inspect per-item outcomes through other means.
func (c *ESClient) BulkWrite(ctx context.Context, ops []WriteOperation) (*BulkResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, line := range CombineBulkOperations(ops) {
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode bulk line: %w", err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("bulk request: %w", err)
	}
	defer drain(res)

	if res.IsError() {
		return nil, fmt.Errorf("bulk request: unexpected status %d", res.StatusCode)
	}

	var out struct {
		Errors bool `json:"errors"`
		Took   int  `json:"took"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	if out.Errors {
		c.logger.ErrorContext(ctx, "Bulk write had errors", slog.Int("operations", len(ops)))
	} else {
		c.logger.DebugContext(ctx, "Wrote bulk batch", slog.Int("documents", len(ops)))
	}
	return &BulkResult{Errors: out.Errors, Took: out.Took}, nil
}

// CombineBulkOperations builds the interleaved bulk body: one action
// descriptor per operation followed by its document, with the document
// omitted for delete actions. For N non-delete operations the result has
// length 2N.
func CombineBulkOperations(ops []WriteOperation) []any {
	lines := make([]any, 0, 2*len(ops))
	for _, op := range ops {
		meta := map[string]any{
			"_index": op.Index,
			"_type":  defaultDocType,
			"_id":    op.ID,
		}
		if op.Parent != "" {
			meta["_parent"] = op.Parent
		}
		lines = append(lines, map[string]any{op.Action: meta})
		if op.Action != "delete" {
			lines = append(lines, op.Body)
		}
	}
	return lines
}

// drain consumes and closes a response body so the connection is reused.
func drain(res *esapi.Response) {
	if res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}
