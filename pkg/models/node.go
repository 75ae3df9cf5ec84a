// Package models defines the plan data model shared across Foreman.
package models

import (
	"encoding/json"
	"fmt"
)

// Status represents the execution state of a plan node.
type Status string

const (
	// StatusPending indicates the node has not started.
	StatusPending Status = "pending"
	// StatusDoing indicates the node is being worked on.
	StatusDoing Status = "doing"
	// StatusDone indicates the node's branch has been merged into its parent.
	StatusDone Status = "done"
	// StatusBlocked indicates every worker tier was exhausted without a
	// passing verification.
	StatusBlocked Status = "blocked"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDoing, StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// ParseStatus converts a raw string into a Status.
// Unknown values fall back to pending so a hand-edited document
// degrades gracefully instead of failing to load.
func ParseStatus(raw string) Status {
	s := Status(raw)
	if !s.Valid() {
		return StatusPending
	}
	return s
}

// Node is one step in the hierarchical plan, addressed by a stable
// dot-separated number (e.g. "1", "2.3.1"). The number is the primary key:
// renumbering is semantically delete+create and orphans status history.
//
// Status, BlockedReason, and Children are owned by the orchestrator; planner
// output never sets them.
type Node struct {
	// Number is the stable hierarchical identifier, unique across the tree.
	Number string
	// Text is the one-line description of the step.
	Text string
	// Status is the current execution state.
	Status Status
	// DependsOn lists step numbers that must be done before this one.
	DependsOn []string
	// DoneWhen lists acceptance criteria for the step.
	DoneWhen []string
	// Details holds longer instructions or context, if any.
	Details string
	// BlockedReason explains a blocked status; meaningful only when blocked.
	BlockedReason string
	// Children are nested sub-steps. Empty means the node is atomic.
	Children []Node
	// Extra captures unknown JSON keys so the document round-trips fields
	// this version of Foreman does not understand.
	Extra map[string]any
}

// Atomic returns true when the node has no children and is therefore
// executed directly by a worker rather than recursed into.
func (n *Node) Atomic() bool {
	return len(n.Children) == 0
}

// nodeKnownKeys are the JSON keys owned by Node; everything else lands in Extra.
var nodeKnownKeys = map[string]bool{
	"number":         true,
	"text":           true,
	"status":         true,
	"depends_on":     true,
	"done_when":      true,
	"details":        true,
	"blocked_reason": true,
	"children":       true,
}

// MarshalJSON serializes the node with exact field-presence rules:
// number, text, status, depends_on, done_when, and children are always
// emitted; details only when non-empty; blocked_reason only when the node is
// blocked and the reason is non-empty. Extra keys are merged last, but keys
// that would shadow a known field are dropped rather than corrupting the
// persisted shape.
func (n Node) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"number":     n.Number,
		"text":       n.Text,
		"status":     string(n.Status),
		"depends_on": emptyIfNil(n.DependsOn),
		"done_when":  emptyIfNil(n.DoneWhen),
		"children":   childrenOrEmpty(n.Children),
	}
	if n.Details != "" {
		out["details"] = n.Details
	}
	if n.Status == StatusBlocked && n.BlockedReason != "" {
		out["blocked_reason"] = n.BlockedReason
	}
	for k, v := range n.Extra {
		if nodeKnownKeys[k] {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses a node, splitting known keys from unknown ones.
// Coercion is forgiving: missing lists become empty, unknown statuses
// become pending.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("plan node must be a JSON object: %w", err)
	}

	var number string
	if err := json.Unmarshal(raw["number"], &number); err != nil {
		return fmt.Errorf("plan node missing required string: number")
	}
	var text string
	if err := json.Unmarshal(raw["text"], &text); err != nil {
		return fmt.Errorf("plan node %s missing required string: text", number)
	}

	node := Node{
		Number: number,
		Text:   text,
		Status: StatusPending,
	}

	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			node.Status = ParseStatus(s)
		}
	}
	if v, ok := raw["depends_on"]; ok {
		_ = json.Unmarshal(v, &node.DependsOn)
	}
	if v, ok := raw["done_when"]; ok {
		_ = json.Unmarshal(v, &node.DoneWhen)
	}
	if v, ok := raw["details"]; ok {
		_ = json.Unmarshal(v, &node.Details)
	}
	if v, ok := raw["blocked_reason"]; ok {
		_ = json.Unmarshal(v, &node.BlockedReason)
	}
	if v, ok := raw["children"]; ok {
		if err := json.Unmarshal(v, &node.Children); err != nil {
			return fmt.Errorf("plan node %s has invalid children: %w", number, err)
		}
	}

	for k, v := range raw {
		if nodeKnownKeys[k] {
			continue
		}
		if node.Extra == nil {
			node.Extra = make(map[string]any)
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("plan node %s has invalid extra field %q: %w", number, k, err)
		}
		node.Extra[k] = val
	}

	*n = node
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func childrenOrEmpty(c []Node) []Node {
	if c == nil {
		return []Node{}
	}
	return c
}
