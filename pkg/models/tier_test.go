package models

import "testing"

func TestParseLadder(t *testing.T) {
	tests := []struct {
		csv  string
		want int
	}{
		{"haiku,sonnet,opus", 3},
		{" haiku , sonnet ", 2},
		{",,", 0},
		{"", 0},
		{"solo", 1},
	}
	for _, tt := range tests {
		got := ParseLadder(tt.csv)
		if len(got) != tt.want {
			t.Errorf("ParseLadder(%q) = %v, want %d tiers", tt.csv, got, tt.want)
		}
	}
}

func TestLadderString(t *testing.T) {
	l := ParseLadder("a, b,c")
	if l.String() != "a,b,c" {
		t.Errorf("expected normalized csv, got %q", l.String())
	}
}
