package models

import (
	"encoding/json"
	"fmt"
)

// MarshalEvent encodes an Event to JSON with a "type" discriminator field
// alongside the variant's own fields, matching the envelope shape
// pkg/eventbus's event bus already expects on the wire (metadata-tagged
// payloads, generalized here into the payload itself so a single JSON
// column can hold the whole event).
func MarshalEvent(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event body: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}

	typeJSON, err := json.Marshal(e.Type())
	if err != nil {
		return nil, fmt.Errorf("marshal event type: %w", err)
	}
	fields["type"] = typeJSON

	return json.Marshal(fields)
}

// UnmarshalEvent decodes a JSON-encoded event, dispatching on its "type"
// discriminator to the concrete variant.
func UnmarshalEvent(data []byte) (Event, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	switch envelope.Type {
	case EventTimeTrigger:
		var e TimeTrigger
		return e, unmarshalInto(data, &e)
	case EventTriggerExecution:
		var e TriggerExecution
		return e, unmarshalInto(data, &e)
	case EventCreated:
		var e Created
		return e, unmarshalInto(data, &e)
	case EventInfo:
		var e Info
		return e, unmarshalInto(data, &e)
	case EventDequeue:
		var e Dequeue
		return e, unmarshalInto(data, &e)
	case EventSubmit:
		var e Submit
		return e, unmarshalInto(data, &e)
	case EventSubmitted:
		var e Submitted
		return e, unmarshalInto(data, &e)
	case EventStarted:
		var e Started
		return e, unmarshalInto(data, &e)
	case EventTerminate:
		var e Terminate
		return e, unmarshalInto(data, &e)
	case EventRunError:
		var e RunError
		return e, unmarshalInto(data, &e)
	case EventSuccess:
		var e Success
		return e, unmarshalInto(data, &e)
	case EventRetryAfter:
		var e RetryAfter
		return e, unmarshalInto(data, &e)
	case EventRetry:
		var e Retry
		return e, unmarshalInto(data, &e)
	case EventStop:
		var e Stop
		return e, unmarshalInto(data, &e)
	case EventTimeout:
		var e Timeout
		return e, unmarshalInto(data, &e)
	case EventHalt:
		var e Halt
		return e, unmarshalInto(data, &e)
	default:
		return nil, fmt.Errorf("unmarshal event: unknown type %q", envelope.Type)
	}
}

func unmarshalInto[T any](data []byte, dest *T) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal event body: %w", err)
	}
	return nil
}
