package ingest

import "fmt"

// InvalidIngestError marks a failure caused by the catalog object itself
// (wrong type, missing links, target index not provisioned) rather than by
// the system. It is recoverable by the sender and logged at warn severity.
type InvalidIngestError struct {
	Reason string
}

func (e *InvalidIngestError) Error() string {
	return e.Reason
}

func invalidIngestf(format string, args ...any) *InvalidIngestError {
	return &InvalidIngestError{Reason: fmt.Sprintf(format, args...)}
}
