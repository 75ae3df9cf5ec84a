package models

import "strings"

// Tier is one worker strength level, identified by the model name handed to
// the worker executable. Tiers are tried weakest to strongest until a step
// passes verification.
type Tier string

// Ladder is an ordered list of tiers, weakest first.
type Ladder []Tier

// ParseLadder splits a comma-separated tier list into a Ladder,
// dropping empty entries.
func ParseLadder(csv string) Ladder {
	var ladder Ladder
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ladder = append(ladder, Tier(part))
	}
	return ladder
}

// String returns the ladder as a comma-separated list.
func (l Ladder) String() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
