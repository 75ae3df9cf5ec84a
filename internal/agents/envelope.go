package agents

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The planner and verifier CLIs emit an output "envelope": either one JSON
// value (commonly an array of events) or a JSONL event stream. The payload we
// want is the structured_output of the final type=="result" event, falling
// back to parsing the printed result string.

type envelopeEvent struct {
	Type             string          `json:"type"`
	StructuredOutput json.RawMessage `json:"structured_output"`
	Result           json.RawMessage `json:"result"`
}

// extractStructured pulls the structured JSON payload out of raw CLI output.
func extractStructured(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	events, ok := decodeEvents(raw)
	if !ok {
		// Not an envelope at all; treat the whole output as the payload.
		if json.Valid([]byte(raw)) {
			return json.RawMessage(raw), nil
		}
		return nil, fmt.Errorf("response is not valid JSON")
	}

	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Type != "result" {
			continue
		}
		if len(ev.StructuredOutput) > 0 && string(ev.StructuredOutput) != "null" {
			return ev.StructuredOutput, nil
		}
		if len(ev.Result) > 0 {
			return payloadFromResult(ev.Result)
		}
	}
	return nil, fmt.Errorf("no result event in response")
}

// decodeEvents tries the two envelope shapes: a single JSON array of events,
// or JSONL with one event per line. Output that decodes but carries no typed
// event is not an envelope.
func decodeEvents(raw string) ([]envelopeEvent, bool) {
	var arr []envelopeEvent
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr, hasTypedEvent(arr)
	}

	var single envelopeEvent
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Type != "" {
		return []envelopeEvent{single}, true
	}

	var events []envelopeEvent
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev envelopeEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, false
		}
		events = append(events, ev)
	}
	return events, hasTypedEvent(events)
}

func hasTypedEvent(events []envelopeEvent) bool {
	for _, ev := range events {
		if ev.Type != "" {
			return true
		}
	}
	return false
}

// payloadFromResult handles result fields that are either embedded JSON or a
// string containing JSON.
func payloadFromResult(result json.RawMessage) (json.RawMessage, error) {
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		s = strings.TrimSpace(s)
		if json.Valid([]byte(s)) {
			return json.RawMessage(s), nil
		}
		return nil, fmt.Errorf("result string is not valid JSON")
	}
	return result, nil
}
