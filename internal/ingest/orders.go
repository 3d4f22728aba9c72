package ingest

import (
	"fmt"
	"strings"

	"github.com/hala-systems/stac-ingest-service/internal/unwrap"
)

// Order result statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFail    = "FAIL"
)

// OrderResult is the aggregate outcome for one order.
type OrderResult struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OrderResults partitions the flat result sequence back into one result per
// order, using the offsets the unwrapper recorded. Results are returned in
// envelope order; a trigger without orders yields none.
func OrderResults(envelopes []unwrap.OrderEnvelope, results []ItemResult) []OrderResult {
	orderResults := make([]OrderResult, 0, len(envelopes))
	for _, env := range envelopes {
		slice := results[env.Offset : env.Offset+env.Count]
		orderResults = append(orderResults, orderResultFromItems(env.OrderID, slice))
	}
	return orderResults
}

// orderResultFromItems reduces one order's item results to a single
// outcome. Any failing item fails the order, with one message line per
// failing item.
func orderResultFromItems(orderID string, items []ItemResult) OrderResult {
	var lines []string
	for _, item := range items {
		if item.Err != nil {
			lines = append(lines, fmt.Sprintf("Item %s failed to ingest. Error: %s",
				item.FailedID(), item.Err.Error()))
		}
	}

	if len(lines) > 0 {
		return OrderResult{
			OrderID: orderID,
			Status:  StatusFail,
			Message: strings.Join(lines, "\n"),
		}
	}
	return OrderResult{OrderID: orderID, Status: StatusSuccess}
}
