package completion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// eventSchema is the ingestion-completed event contract, draft-04
// compatible. The status/message conditional requires a message whenever
// the payload status is FAIL.
const eventSchema = `{
  "id": "https://halasystems.com/fabric/event-ingest-completed.v1.0.0.json",
  "title": "Imagery ingestion completed event",
  "description": "An event emitted after the ingestion of satellite imagery is completed in the STAC server",
  "type": "object",
  "properties": {
    "eventType": {
      "const": "IngestCompleted"
    },
    "producerName": {
      "description": "Name of the producer of the event.",
      "type": "string",
      "minLength": 2
    },
    "version": {
      "const": "1.0.0"
    },
    "tags": {
      "description": "Information about the sender of the event.",
      "type": "object",
      "properties": {
        "account": {
          "description": "Name of the AWS account.",
          "type": "string",
          "minLength": 2
        },
        "stage": {
          "description": "Deploy stage.",
          "type": "string",
          "minLength": 3
        },
        "deployVersion": {
          "description": "Version of the producer of this event.",
          "type": "string",
          "minLength": 2
        },
        "test": {
          "description": "Indicator that the event is a test.",
          "type": "boolean"
        }
      },
      "required": ["account", "stage", "deployVersion"],
      "additionalProperties": true
    },
    "payload": {
      "type": "object",
      "properties": {
        "orderId": {
          "description": "The ID of the order, as provided by the imagery service",
          "type": "string",
          "format": "uuid"
        },
        "status": {
          "description": "The resulting status of the ingestion process",
          "type": "string",
          "enum": ["SUCCESS", "FAIL"]
        },
        "message": {
          "description": "The error message(s) for the items that have failed to ingest, in case the status is FAIL",
          "type": "string"
        }
      },
      "required": ["orderId", "status"],
      "allOf": [
        {
          "if": {
            "properties": {"status": {"const": "FAIL"}},
            "required": ["status"]
          },
          "then": {"required": ["message"]}
        }
      ],
      "additionalProperties": false
    },
    "flowId": {
      "description": "ID of the flow for multiple events.",
      "type": "string",
      "minLength": 2
    }
  },
  "required": ["eventType", "producerName", "version", "tags", "payload", "flowId"],
  "additionalProperties": false
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(eventSchema))
	if err != nil {
		panic(fmt.Sprintf("compile completion event schema: %v", err))
	}
	return schema
}

// ValidationError aggregates the schema failures across a whole batch of
// events. No event from a batch carrying one is published.
type ValidationError struct {
	Failures []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event format validation errors: %s", strings.Join(e.Failures, "; "))
}

// ValidateEvent checks one event against the completion schema and returns
// the individual failure descriptions, nil when valid.
func ValidateEvent(event Event) ([]string, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(event))
	if err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	failures := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		failures = append(failures, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return failures, nil
}

// ValidateEvents checks every event and aggregates all failures into one
// ValidationError. Valid batches return nil.
func ValidateEvents(events []Event) error {
	var all []string
	for i, event := range events {
		failures, err := ValidateEvent(event)
		if err != nil {
			return err
		}
		for _, f := range failures {
			all = append(all, fmt.Sprintf("event %d: %s", i, f))
		}
	}
	if len(all) > 0 {
		return &ValidationError{Failures: all}
	}
	return nil
}

// AsValidationError reports whether err is (or wraps) a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
