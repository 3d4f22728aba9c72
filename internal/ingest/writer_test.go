package ingest

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hala-systems/stac-ingest-service/internal/searchstore"
)

// mockStore implements searchstore.Client for testing.
type mockStore struct {
	existsFunc  func(ctx context.Context, name string) (bool, error)
	createFunc  func(ctx context.Context, name string) error
	createdFunc func(ctx context.Context, index, id string) (string, error)
	indexFunc   func(ctx context.Context, op searchstore.WriteOperation) (*searchstore.WriteResult, error)
	bulkFunc    func(ctx context.Context, ops []searchstore.WriteOperation) (*searchstore.BulkResult, error)

	createdIndices []string
	indexedOps     []searchstore.WriteOperation
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, name)
	}
	return true, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, name string) error {
	m.createdIndices = append(m.createdIndices, name)
	if m.createFunc != nil {
		return m.createFunc(ctx, name)
	}
	return nil
}

func (m *mockStore) GetCreatedTimestamp(ctx context.Context, index, id string) (string, error) {
	if m.createdFunc != nil {
		return m.createdFunc(ctx, index, id)
	}
	return "", nil
}

func (m *mockStore) IndexDocument(ctx context.Context, op searchstore.WriteOperation) (*searchstore.WriteResult, error) {
	m.indexedOps = append(m.indexedOps, op)
	if m.indexFunc != nil {
		return m.indexFunc(ctx, op)
	}
	return &searchstore.WriteResult{Result: "created"}, nil
}

func (m *mockStore) BulkWrite(ctx context.Context, ops []searchstore.WriteOperation) (*searchstore.BulkResult, error) {
	if m.bulkFunc != nil {
		return m.bulkFunc(ctx, ops)
	}
	return &searchstore.BulkResult{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestWriteSingle_ItemIndexMustExist(t *testing.T) {
	store := &mockStore{
		existsFunc: func(_ context.Context, name string) (bool, error) {
			return false, nil
		},
	}
	w := NewWriter(store, "collections", discardLogger())

	_, err := w.WriteSingle(context.Background(), &searchstore.WriteOperation{
		Index: "sentinel-2", ID: "item-1", Action: "index",
	})
	var invalid *InvalidIngestError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidIngestError", err)
	}
	if len(store.indexedOps) != 0 {
		t.Error("document was written despite missing index")
	}
}

func TestWriteSingle_Item(t *testing.T) {
	store := &mockStore{}
	w := NewWriter(store, "collections", discardLogger())

	res, err := w.WriteSingle(context.Background(), &searchstore.WriteOperation{
		Index: "sentinel-2", ID: "item-1", Action: "index",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "created" {
		t.Errorf("result = %q", res.Result)
	}
	if len(store.createdIndices) != 0 {
		t.Errorf("item write created indices: %v", store.createdIndices)
	}
}

func TestWriteSingle_CollectionBootstrapsIndex(t *testing.T) {
	store := &mockStore{
		existsFunc: func(_ context.Context, name string) (bool, error) {
			t.Errorf("existence check performed for collections write on %q", name)
			return false, nil
		},
	}
	w := NewWriter(store, "collections", discardLogger())

	_, err := w.WriteSingle(context.Background(), &searchstore.WriteOperation{
		Index: "collections", ID: "sentinel-2", Action: "index",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.createdIndices) != 1 || store.createdIndices[0] != "sentinel-2" {
		t.Errorf("created indices = %v, want [sentinel-2]", store.createdIndices)
	}
}

func TestWriteSingle_WriteError(t *testing.T) {
	wantErr := errors.New("cluster unavailable")
	store := &mockStore{
		indexFunc: func(_ context.Context, _ searchstore.WriteOperation) (*searchstore.WriteResult, error) {
			return nil, wantErr
		},
	}
	w := NewWriter(store, "collections", discardLogger())

	_, err := w.WriteSingle(context.Background(), &searchstore.WriteOperation{
		Index: "sentinel-2", ID: "item-1", Action: "index",
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped cluster error", err)
	}
	var invalid *InvalidIngestError
	if errors.As(err, &invalid) {
		t.Error("transport error classified as InvalidIngestError")
	}
}
