package plan

import (
	"fmt"
	"strings"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// statusGlyph maps a node status to its one-character checklist glyph.
func statusGlyph(s models.Status) string {
	switch s {
	case models.StatusDone:
		return "✓" // ✓
	case models.StatusDoing:
		return ">"
	case models.StatusBlocked:
		return "✗" // ✗
	default:
		return " "
	}
}

// RenderRoot renders a top-level view of the plan: title, optional task
// context, and one checklist line per top-level item.
func RenderRoot(d *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	if d.Context != "" {
		b.WriteString("## Task Context\n\n")
		b.WriteString(strings.TrimSpace(d.Context))
		b.WriteString("\n\n")
	}
	for _, item := range d.Items {
		fmt.Fprintf(&b, "[%s] %s. %s\n", statusGlyph(item.Status), item.Number, item.Text)
	}
	return b.String()
}

// RenderStep renders a path-aware view focused on one step: for each level of
// the step's ancestor chain it shows the sibling list, the selected node's
// details, and (for the target step only) its acceptance criteria. This keeps
// prompt context tight while still showing local siblings at each depth.
func RenderStep(d *Document, stepNumber string) (string, error) {
	if _, err := d.Get(stepNumber); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	if d.Context != "" {
		b.WriteString("## Task Context\n\n")
		b.WriteString(strings.TrimSpace(d.Context))
		b.WriteString("\n\n")
	}

	items := d.Items
	for _, ancestor := range ancestors(stepNumber) {
		var selected *models.Node
		for i := range items {
			fmt.Fprintf(&b, "[%s] %s. %s\n", statusGlyph(items[i].Status), items[i].Number, items[i].Text)
			if items[i].Number == ancestor {
				selected = &items[i]
			}
		}
		if selected == nil {
			break
		}
		b.WriteString("\n")
		if selected.Details != "" {
			fmt.Fprintf(&b, "Details: \"\"\"\n%s\n\"\"\"\n\n", strings.TrimSpace(selected.Details))
		}
		if selected.Number == stepNumber && len(selected.DoneWhen) > 0 {
			b.WriteString("Done when:\n")
			for _, criterion := range selected.DoneWhen {
				fmt.Fprintf(&b, "- %s\n", criterion)
			}
			b.WriteString("\n")
		}
		items = selected.Children
	}

	return b.String(), nil
}

// RenderTree renders the full plan as an indented checklist, used by the
// status command.
func RenderTree(d *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.Title)
	renderLevel(&b, d.Items, 0)
	return b.String()
}

func renderLevel(b *strings.Builder, items []models.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range items {
		fmt.Fprintf(b, "%s[%s] %s. %s\n", indent, statusGlyph(item.Status), item.Number, item.Text)
		if item.Status == models.StatusBlocked && item.BlockedReason != "" {
			fmt.Fprintf(b, "%s    blocked: %s\n", indent, item.BlockedReason)
		}
		renderLevel(b, item.Children, depth+1)
	}
}

// ancestors expands "1.2.3" into ["1", "1.2", "1.2.3"].
func ancestors(number string) []string {
	parts := strings.Split(number, ".")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "."))
	}
	return out
}
