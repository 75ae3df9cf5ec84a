package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// failureHeader is the markdown section failure entries live under.
const failureHeader = "## Foreman"

// emptyFailureLog seeds a fresh failure log.
const emptyFailureLog = "# Failures\n\n" + failureHeader + "\n- (empty)\n"

// appendFailure records one rejected attempt in the failure log. The log is
// append-only: prior entries are never rewritten, so every tier's note
// survives for later prompts and post-mortems.
func appendFailure(path, number string, tier models.Tier, note string) error {
	entry := fmt.Sprintf("\n### %s (%s)\n\n%s\n", number, tier, strings.TrimSpace(note))

	existing := ""
	if raw, err := os.ReadFile(path); err == nil {
		existing = string(raw)
	}

	updated := appendUnderSection(existing, failureHeader, entry)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create failure log directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Errorf("write failure log: %w", err)
	}
	return nil
}

// appendUnderSection appends content under the given markdown header,
// creating the header (and the document skeleton) when missing and dropping
// the "- (empty)" placeholder on first use.
func appendUnderSection(text, header, content string) string {
	if strings.TrimSpace(text) == "" {
		text = emptyFailureLog
	}

	lines := strings.Split(text, "\n")
	idx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			idx = i
			break
		}
	}
	if idx == -1 {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += "\n" + header + "\n- (empty)\n"
		lines = strings.Split(text, "\n")
		for i, line := range lines {
			if strings.TrimSpace(line) == header {
				idx = i
				break
			}
		}
	}

	out := text
	if idx+1 < len(lines) && strings.TrimSpace(lines[idx+1]) == "- (empty)" {
		trimmed := append(append([]string{}, lines[:idx+1]...), lines[idx+2:]...)
		out = strings.TrimRight(strings.Join(trimmed, "\n"), "\n") + "\n"
	}

	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + strings.TrimLeft(content, "\n")
}
