package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmcfarlane/foreman/internal/plan"
)

// Prompts are rendered Markdown files under the prompts directory, rewritten
// on every use. Each prompt is composed of a plan view, role instructions
// behind a thematic break, and the failure-log section when one exists.

type promptRole string

const (
	rolePlanner  promptRole = "planner"
	roleWorker   promptRole = "worker"
	roleVerifier promptRole = "verifier"
)

// stepKey maps a step number to a filename-safe key; empty means root.
func stepKey(number string) string {
	if number == "" {
		return "root"
	}
	return strings.ReplaceAll(number, ".", "-")
}

// writeRolePrompt renders the prompt for a planner or worker call and returns
// its path.
func (o *Orchestrator) writeRolePrompt(doc *plan.Document, number string, role promptRole) (string, error) {
	body, err := o.planView(doc, number)
	if err != nil {
		return "", err
	}
	content := body + roleInstructions(role, number) + o.failureSection()
	return o.writePrompt(stepKey(number), role, content)
}

// writeVerifierPrompt renders the verifier prompt, which additionally carries
// the step's commits and diff.
func (o *Orchestrator) writeVerifierPrompt(doc *plan.Document, number, diff string, commits []string) (string, error) {
	body, err := o.planView(doc, number)
	if err != nil {
		return "", err
	}

	var changes strings.Builder
	changes.WriteString("## Git Changes\n\n")
	changes.WriteString("Commits since branch creation:\n")
	if len(commits) == 0 {
		changes.WriteString("- (none)\n")
	} else {
		for _, c := range commits {
			fmt.Fprintf(&changes, "- %s\n", c)
		}
	}
	changes.WriteString("\nDiff:\n```diff\n")
	changes.WriteString(strings.TrimRight(diff, " \t\n"))
	changes.WriteString("\n```\n")

	content := body + changes.String() + roleInstructions(roleVerifier, number) + o.failureSection()
	return o.writePrompt(stepKey(number), roleVerifier, content)
}

func (o *Orchestrator) planView(doc *plan.Document, number string) (string, error) {
	if number == "" {
		return plan.RenderRoot(doc), nil
	}
	return plan.RenderStep(doc, number)
}

func (o *Orchestrator) writePrompt(key string, role promptRole, content string) (string, error) {
	if err := os.MkdirAll(o.cfg.PromptsDir, 0755); err != nil {
		return "", fmt.Errorf("create prompts directory: %w", err)
	}
	path := filepath.Join(o.cfg.PromptsDir, fmt.Sprintf("%s-%s.md", key, role))
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s prompt: %w", role, err)
	}
	return path, nil
}

func roleInstructions(role promptRole, number string) string {
	switch role {
	case rolePlanner:
		target := "the overall task"
		if number != "" {
			target = "step " + number
		}
		return "\n---\n\n" +
			"Planner Instructions\n\n" +
			fmt.Sprintf("I am in charge of %s. I break it down into a series of steps according to the provided JSON schema.\n\n", target) +
			"Output must be a JSON object that validates against the provided JSON schema. In particular, return:\n" +
			"- `title`: a short title for this plan\n" +
			"- `items`: the immediate steps for this task/step (one level only; do not pre-fill nested `children`)\n\n" +
			"Each item must be an object with:\n" +
			"- `number`: hierarchical numbering like `1`, `1.2`, `2.3.1`\n" +
			"- `text`: one-line description\n" +
			"- `depends_on`: array of prerequisite step numbers (use `[]` when none)\n" +
			"- `done_when`: array of acceptance criteria strings (min 1)\n" +
			"Optional:\n" +
			"- `details`: long-form instructions/context for this step\n\n" +
			"Do not include a `status` field; foreman manages status.\n\n" +
			"If the task is simple and can be done in one step, produce exactly one item in `items`.\n\n" +
			"If the task/context is underspecified, make reasonable assumptions and proceed. Do not ask questions.\n\n" +
			"Return only valid JSON on stdout. No markdown fences or extra commentary.\n"
	case roleWorker:
		return "\n---\n\n" +
			"Worker Instructions\n\n" +
			fmt.Sprintf("I am in charge of step %s.\n", number)
	case roleVerifier:
		return "\n---\n\n" +
			"Verifier Instructions\n\n" +
			fmt.Sprintf("Verify that step %s is completed according to its `done_when` criteria and the provided diffs.\n", number) +
			"Return pass/fail and a concise note when failing.\n"
	}
	return ""
}

// failureSection returns the failure-log block appended to every prompt, or
// empty when there are no recorded failures.
func (o *Orchestrator) failureSection() string {
	raw, err := os.ReadFile(o.cfg.FailuresPath)
	if err != nil || strings.TrimSpace(string(raw)) == "" {
		return ""
	}
	section := extractSection(string(raw), failureHeader)
	if section == "" {
		section = strings.TrimSpace(string(raw))
	}
	return "\n---\n\nPast Failures\n\n" + strings.TrimSpace(section) + "\n"
}

// extractSection returns text from the given markdown header to end of file.
func extractSection(text, header string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return strings.Join(lines[i:], "\n")
		}
	}
	return ""
}
