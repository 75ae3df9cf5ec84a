// Package plan provides the persisted plan document, Foreman's single source
// of truth for step structure and status.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// ErrMalformedDocument indicates the on-disk plan is not a usable document.
var ErrMalformedDocument = errors.New("malformed plan document")

// ErrNotFound indicates a step number does not exist in the tree.
var ErrNotFound = errors.New("plan step not found")

// docKnownKeys are the JSON keys owned by Document; everything else is Extra.
var docKnownKeys = map[string]bool{
	"title":   true,
	"context": true,
	"items":   true,
}

// Document is the root of the plan tree. It is mutated in place by the
// orchestrator on every status transition and persisted immediately.
//
// The document has no cross-process locking; concurrent writers against the
// same path can corrupt state. Single-writer access is a precondition.
type Document struct {
	// Title is a short name for the overall plan. Required, non-empty.
	Title string
	// Context is the original task text, used to detect task-identity
	// mismatches across runs. Empty means absent.
	Context string
	// Items are the top-level steps.
	Items []models.Node
	// Extra captures unknown top-level keys for round-tripping.
	Extra map[string]any
}

// Load reads and parses the plan document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: top-level value must be a JSON object: %v", ErrMalformedDocument, err)
	}

	doc := &Document{}
	if v, ok := raw["title"]; ok {
		_ = json.Unmarshal(v, &doc.Title)
	}
	if doc.Title == "" {
		return nil, fmt.Errorf("%w: missing required field: title", ErrMalformedDocument)
	}
	if v, ok := raw["context"]; ok {
		_ = json.Unmarshal(v, &doc.Context)
	}
	if v, ok := raw["items"]; ok {
		if err := json.Unmarshal(v, &doc.Items); err != nil {
			return nil, fmt.Errorf("%w: invalid items: %v", ErrMalformedDocument, err)
		}
	}

	for k, v := range raw {
		if docKnownKeys[k] {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]any)
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("%w: invalid extra field %q: %v", ErrMalformedDocument, k, err)
		}
		doc.Extra[k] = val
	}

	return doc, nil
}

// Save writes the document to path, creating parent directories as needed.
// Output is indented JSON with a trailing newline.
func (d *Document) Save(path string) error {
	out := map[string]any{
		"title": d.Title,
		"items": itemsOrEmpty(d.Items),
	}
	if d.Context != "" {
		out["context"] = d.Context
	}
	for k, v := range d.Extra {
		if docKnownKeys[k] {
			continue
		}
		out[k] = v
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create plan directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// Get returns the node with the given number, searching the tree in pre-order
// depth-first order so a parent wins over a descendant on (invalid) number
// collisions.
func (d *Document) Get(number string) (*models.Node, error) {
	if n := findNode(d.Items, number); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
}

// IsDone reports whether the node with the given number has status done.
func (d *Document) IsDone(number string) (bool, error) {
	n, err := d.Get(number)
	if err != nil {
		return false, err
	}
	return n.Status == models.StatusDone, nil
}

// IsComplete reports whether every node in the tree is done.
// An empty tree is complete.
func (d *Document) IsComplete() bool {
	complete := true
	walk(d.Items, func(n *models.Node) {
		if n.Status != models.StatusDone {
			complete = false
		}
	})
	return complete
}

// SetStatus updates the status of the node with the given number.
func (d *Document) SetStatus(number string, status models.Status) error {
	n, err := d.Get(number)
	if err != nil {
		return err
	}
	n.Status = status
	return nil
}

// SetBlocked marks the node blocked and records the reason in one step.
func (d *Document) SetBlocked(number, reason string) error {
	n, err := d.Get(number)
	if err != nil {
		return err
	}
	n.Status = models.StatusBlocked
	n.BlockedReason = reason
	return nil
}

// ApplySpec applies a planner spec to an existing node: text is overwritten
// unconditionally; details, depends_on, and done_when only when the spec
// carries them. Status, blocked_reason, and children are untouched.
func (d *Document) ApplySpec(number string, spec models.ItemSpec) error {
	n, err := d.Get(number)
	if err != nil {
		return err
	}
	applySpec(n, spec)
	return nil
}

// UpsertChildren merges planner-produced specs under a parent node.
// Existing children are matched by number and updated via ApplySpec semantics,
// preserving status, blocked_reason, and grandchildren. Unknown numbers
// become fresh pending children. Existing children absent from specs are
// preserved and appended after the merged set; nothing is ever deleted here.
func (d *Document) UpsertChildren(parentNumber string, specs []models.ItemSpec) error {
	parent, err := d.Get(parentNumber)
	if err != nil {
		return err
	}

	existing := make(map[string]*models.Node, len(parent.Children))
	for i := range parent.Children {
		existing[parent.Children[i].Number] = &parent.Children[i]
	}

	merged := make([]models.Node, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		seen[spec.Number] = true
		if old, ok := existing[spec.Number]; ok {
			child := *old
			applySpec(&child, spec)
			merged = append(merged, child)
			continue
		}
		merged = append(merged, spec.NewNode())
	}

	// Keep children the planner omitted so a sloppy planning pass cannot
	// silently destroy work.
	for _, old := range parent.Children {
		if !seen[old.Number] {
			merged = append(merged, old)
		}
	}

	parent.Children = merged
	return nil
}

func applySpec(n *models.Node, spec models.ItemSpec) {
	n.Text = spec.Text
	if spec.Details != "" {
		n.Details = spec.Details
	}
	if spec.DependsOn != nil {
		n.DependsOn = append([]string{}, spec.DependsOn...)
	}
	if spec.DoneWhen != nil {
		n.DoneWhen = append([]string{}, spec.DoneWhen...)
	}
}

// findNode locates a node by number in pre-order depth-first order.
func findNode(items []models.Node, number string) *models.Node {
	for i := range items {
		if items[i].Number == number {
			return &items[i]
		}
		if n := findNode(items[i].Children, number); n != nil {
			return n
		}
	}
	return nil
}

// walk visits every node in pre-order depth-first order.
func walk(items []models.Node, visit func(*models.Node)) {
	for i := range items {
		visit(&items[i])
		walk(items[i].Children, visit)
	}
}

func itemsOrEmpty(items []models.Node) []models.Node {
	if items == nil {
		return []models.Node{}
	}
	return items
}
