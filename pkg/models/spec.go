package models

// ItemSpec is the untrusted, planner-produced shape ingested at the trust
// boundary. It never carries status, blocked_reason, or children; those are
// owned by the plan store. Nil slice fields mean "absent" so a refinement can
// leave existing values untouched, as opposed to an empty slice which
// overwrites.
type ItemSpec struct {
	// Number is the stable step identifier the spec addresses.
	Number string `json:"number"`
	// Text is the one-line step description.
	Text string `json:"text"`
	// Details holds longer instructions, if provided.
	Details string `json:"details,omitempty"`
	// DependsOn lists prerequisite step numbers; nil means absent.
	DependsOn []string `json:"depends_on,omitempty"`
	// DoneWhen lists acceptance criteria; nil means absent.
	DoneWhen []string `json:"done_when,omitempty"`
}

// NewNode converts a validated spec into a fresh pending node.
func (s ItemSpec) NewNode() Node {
	return Node{
		Number:    s.Number,
		Text:      s.Text,
		Details:   s.Details,
		Status:    StatusPending,
		DependsOn: append([]string{}, s.DependsOn...),
		DoneWhen:  append([]string{}, s.DoneWhen...),
	}
}
