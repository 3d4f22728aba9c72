// Package stac models the catalog objects (Collections and Items) that flow
// through the ingest pipeline. Objects are kept as open maps so that fields
// this service does not interpret survive the round trip into the search
// index unchanged.
package stac

import "strings"

// Object types recognised by the pipeline.
const (
	TypeCollection = "Collection"
	TypeFeature    = "Feature"
)

// hierarchyLinkRels are the link relations describing catalog navigation.
// They are stripped before storage because downstream readers reconstruct
// them from the index itself.
var hierarchyLinkRels = map[string]bool{
	"self":       true,
	"root":       true,
	"parent":     true,
	"child":      true,
	"collection": true,
	"item":       true,
	"items":      true,
}

// CatalogObject is one STAC Collection or Item as received from a trigger.
type CatalogObject map[string]any

// Type returns the object's "type" field, or "" if absent.
func (o CatalogObject) Type() string {
	t, _ := o["type"].(string)
	return t
}

// ID returns the object's "id" field, or "" if absent.
func (o CatalogObject) ID() string {
	id, _ := o["id"].(string)
	return id
}

// Collection returns the parent collection name for Items, or "" if absent.
func (o CatalogObject) Collection() string {
	c, _ := o["collection"].(string)
	return c
}

// Properties returns the object's "properties" mapping, or nil if absent.
func (o CatalogObject) Properties() map[string]any {
	p, _ := o["properties"].(map[string]any)
	return p
}

// Links returns the object's "links" sequence. The second return reports
// whether a links field was present at all.
func (o CatalogObject) Links() ([]any, bool) {
	raw, ok := o["links"]
	if !ok {
		return nil, false
	}
	links, ok := raw.([]any)
	return links, ok
}

// IsCollection reports whether the object is a STAC Collection.
func (o CatalogObject) IsCollection() bool {
	return o.Type() == TypeCollection
}

// IsItem reports whether the object is a STAC Item.
func (o CatalogObject) IsItem() bool {
	return o.Type() == TypeFeature
}

// SanitizeID normalises an object id for use as a document id: the first
// space becomes an underscore, the first colon becomes a dash, and the
// result is lowercased. Sanitizing an already-sanitized id is a no-op.
func SanitizeID(id string) string {
	id = strings.Replace(id, " ", "_", 1)
	id = strings.Replace(id, ":", "-", 1)
	return strings.ToLower(id)
}

// IsHierarchyLink reports whether rel is a catalog navigation relation.
func IsHierarchyLink(rel string) bool {
	return hierarchyLinkRels[rel]
}

// PruneHierarchyLinks returns links with every hierarchy-relation entry
// removed. The input slice is not modified.
func PruneHierarchyLinks(links []any) []any {
	pruned := make([]any, 0, len(links))
	for _, raw := range links {
		link, ok := raw.(map[string]any)
		if ok {
			rel, _ := link["rel"].(string)
			if IsHierarchyLink(rel) {
				continue
			}
		}
		pruned = append(pruned, raw)
	}
	return pruned
}
