// Package unwrap flattens heterogeneous trigger payloads into an ordered
// sequence of catalog objects. A trigger invocation may carry many SQS
// records; each record body may be a bare message or an SNS notification
// envelope, and each message may reference many objects (an order), one
// object, or be the object itself. The unwrapper records where each order's
// objects begin and end in the flat sequence so that results can later be
// partitioned back into per-order outcomes without re-parsing the trigger.
package unwrap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/hala-systems/stac-ingest-service/internal/resolver"
	"github.com/hala-systems/stac-ingest-service/internal/stac"
)

// OrderEnvelope marks the span of the flat object sequence contributed by
// one order-bearing trigger record.
type OrderEnvelope struct {
	OrderID string
	Offset  int
	Count   int
}

// Batch is the flattened output of one trigger invocation.
type Batch struct {
	Objects []stac.CatalogObject
	Orders  []OrderEnvelope
}

// snsEnvelope is the subset of an SNS notification body the unwrapper needs.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// message is one trigger message after any notification envelope has been
// removed. Raw holds the full message for the inline-object case.
type message struct {
	Items   []string `json:"items"`
	Href    string   `json:"href"`
	OrderID string   `json:"order_id"`

	raw json.RawMessage
}

// Unwrapper flattens trigger events, resolving by-reference objects.
type Unwrapper struct {
	resolver resolver.Resolver
}

// New creates an Unwrapper backed by the given resolver.
func New(r resolver.Resolver) *Unwrapper {
	return &Unwrapper{resolver: r}
}

// UnwrapEvent flattens every record of an SQS event into Batch.Objects,
// preserving record order and intra-record reference order, and records an
// OrderEnvelope for every record whose message carried an order_id. Any
// unresolvable reference or malformed record body fails the whole event.
func (u *Unwrapper) UnwrapEvent(ctx context.Context, event events.SQSEvent) (*Batch, error) {
	batch := &Batch{}

	for _, record := range event.Records {
		msg, err := parseRecord([]byte(record.Body))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", record.MessageId, err)
		}

		objs, err := u.resolveMessage(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", record.MessageId, err)
		}

		if msg.OrderID != "" {
			batch.Orders = append(batch.Orders, OrderEnvelope{
				OrderID: msg.OrderID,
				Offset:  len(batch.Objects),
				Count:   len(objs),
			})
		}
		batch.Objects = append(batch.Objects, objs...)
	}

	return batch, nil
}

// UnwrapObject wraps a single inline catalog object, for direct invocation.
func (u *Unwrapper) UnwrapObject(obj stac.CatalogObject) *Batch {
	return &Batch{Objects: []stac.CatalogObject{obj}}
}

// parseRecord parses a record body, unwrapping an SNS notification envelope
// if one is present.
func parseRecord(body []byte) (*message, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}

	raw := json.RawMessage(body)
	if env.Type == "Notification" {
		raw = json.RawMessage(env.Message)
	}

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	msg.raw = raw
	return &msg, nil
}

// resolveMessage turns one message into its catalog objects. References in
// an items list are resolved concurrently; the output order matches the
// reference order regardless of completion order.
func (u *Unwrapper) resolveMessage(ctx context.Context, msg *message) ([]stac.CatalogObject, error) {
	switch {
	case msg.Items != nil:
		objs := make([]stac.CatalogObject, len(msg.Items))
		g, gctx := errgroup.WithContext(ctx)
		for i, ref := range msg.Items {
			g.Go(func() error {
				obj, err := u.resolver.Resolve(gctx, ref)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", ref, err)
				}
				objs[i] = obj
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return objs, nil

	case msg.Href != "":
		obj, err := u.resolver.Resolve(ctx, msg.Href)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", msg.Href, err)
		}
		return []stac.CatalogObject{obj}, nil

	default:
		var obj stac.CatalogObject
		if err := json.Unmarshal(msg.raw, &obj); err != nil {
			return nil, fmt.Errorf("parse inline object: %w", err)
		}
		return []stac.CatalogObject{obj}, nil
	}
}
