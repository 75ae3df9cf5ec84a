package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// parsePlanPayload validates the planner's structured output: an object with
// an optional title and a non-empty items array. Strings are trimmed and
// empty optional strings normalized to absent.
func parsePlanPayload(payload json.RawMessage) (PlanResult, error) {
	var raw struct {
		Title *string           `json:"title"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return PlanResult{}, fmt.Errorf("planner returned non-object JSON: %w", err)
	}
	if raw.Items == nil {
		return PlanResult{}, fmt.Errorf("planner JSON missing required field: items")
	}
	if len(raw.Items) == 0 {
		return PlanResult{}, fmt.Errorf("planner JSON field 'items' must contain at least 1 item")
	}

	result := PlanResult{}
	if raw.Title != nil {
		result.Title = strings.TrimSpace(*raw.Title)
	}
	for i, item := range raw.Items {
		spec, err := parseItemSpec(item)
		if err != nil {
			return PlanResult{}, fmt.Errorf("planner item %d: %w", i, err)
		}
		result.Items = append(result.Items, spec)
	}
	return result, nil
}

// parseItemSpec validates one planner item at the trust boundary.
// An ItemSpec never carries status, blocked_reason, or children; those are
// store-owned and a planner attempting to set them is simply ignored.
func parseItemSpec(raw json.RawMessage) (models.ItemSpec, error) {
	var item struct {
		Number    *string   `json:"number"`
		Text      *string   `json:"text"`
		Details   *string   `json:"details"`
		DependsOn []*string `json:"depends_on"`
		DoneWhen  []*string `json:"done_when"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return models.ItemSpec{}, fmt.Errorf("not an object: %w", err)
	}

	if item.Number == nil || strings.TrimSpace(*item.Number) == "" {
		return models.ItemSpec{}, fmt.Errorf("missing required string: number")
	}
	number := strings.TrimSpace(*item.Number)
	if item.Text == nil || strings.TrimSpace(*item.Text) == "" {
		return models.ItemSpec{}, fmt.Errorf("item %s missing required string: text", number)
	}

	spec := models.ItemSpec{
		Number: number,
		Text:   strings.TrimSpace(*item.Text),
	}
	if item.Details != nil {
		spec.Details = strings.TrimSpace(*item.Details)
	}

	var err error
	spec.DependsOn, err = stringList(item.DependsOn, raw, "depends_on")
	if err != nil {
		return models.ItemSpec{}, fmt.Errorf("item %s: %w", number, err)
	}
	spec.DoneWhen, err = stringList(item.DoneWhen, raw, "done_when")
	if err != nil {
		return models.ItemSpec{}, fmt.Errorf("item %s: %w", number, err)
	}
	return spec, nil
}

// stringList converts a decoded []*string back to []string, rejecting null
// entries and non-array shapes. A nil field stays nil (absent) so partial
// refinement works downstream.
func stringList(decoded []*string, raw json.RawMessage, field string) ([]string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	fieldRaw, present := probe[field]
	if !present || string(fieldRaw) == "null" {
		return nil, nil
	}

	var check []any
	if err := json.Unmarshal(fieldRaw, &check); err != nil {
		return nil, fmt.Errorf("invalid %s; expected array of strings", field)
	}

	out := make([]string, 0, len(decoded))
	for _, s := range decoded {
		if s == nil {
			return nil, fmt.Errorf("invalid %s; expected array of strings", field)
		}
		if strings.TrimSpace(*s) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(*s))
	}
	return out, nil
}
