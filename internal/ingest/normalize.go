// Package ingest drives catalog objects through normalization and index
// writes, and folds the per-object outcomes back into per-order results.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/hala-systems/stac-ingest-service/internal/searchstore"
	"github.com/hala-systems/stac-ingest-service/internal/stac"
)

// retryOnConflict is the conflict retry count attached to write operations.
const retryOnConflict = 3

// CreatedLookup reads the stored created timestamp for a document. An
// absent document yields "".
type CreatedLookup interface {
	GetCreatedTimestamp(ctx context.Context, index, id string) (string, error)
}

// Normalizer converts catalog objects into index write operations.
type Normalizer struct {
	store            CreatedLookup
	collectionsIndex string
	now              func() time.Time
}

// NewNormalizer creates a Normalizer. The collections index is the fixed
// target for Collection objects.
func NewNormalizer(store CreatedLookup, collectionsIndex string) *Normalizer {
	return &Normalizer{
		store:            store,
		collectionsIndex: collectionsIndex,
		now:              time.Now,
	}
}

// Convert derives the write operation for one catalog object: target index
// by type, sanitized id, hierarchy links pruned, and created/updated
// timestamp provenance when the object carries properties. The input object
// is not modified.
func (n *Normalizer) Convert(ctx context.Context, obj stac.CatalogObject) (*searchstore.WriteOperation, error) {
	var index string
	switch {
	case obj.IsCollection():
		index = n.collectionsIndex
	case obj.IsItem() && obj.Collection() != "":
		index = obj.Collection()
	default:
		return nil, invalidIngestf(`expected type to be "Collection" or "Feature" not %q`, obj.Type())
	}

	id := stac.SanitizeID(obj.ID())

	links, ok := obj.Links()
	if !ok {
		return nil, invalidIngestf("expected a links field on the catalog object")
	}

	body := make(stac.CatalogObject, len(obj))
	for k, v := range obj {
		body[k] = v
	}
	body["id"] = id
	body["links"] = stac.PruneHierarchyLinks(links)

	if props := obj.Properties(); props != nil {
		now := n.now().UTC().Format(time.RFC3339Nano)

		created, err := n.store.GetCreatedTimestamp(ctx, index, id)
		if err != nil {
			return nil, fmt.Errorf("look up created timestamp: %w", err)
		}
		if created == "" {
			created = now
		}

		newProps := make(map[string]any, len(props)+2)
		for k, v := range props {
			newProps[k] = v
		}
		newProps["created"] = created
		newProps["updated"] = now
		body["properties"] = newProps
	}

	return &searchstore.WriteOperation{
		Index:           index,
		ID:              id,
		Action:          "index",
		RetryOnConflict: retryOnConflict,
		Body:            body,
	}, nil
}
