package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tmcfarlane/foreman/internal/config"
	"github.com/tmcfarlane/foreman/internal/plan"
	"github.com/tmcfarlane/foreman/internal/workspace"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current plan's progress",
	Long: `Display the plan tree with per-step status glyphs:

  [ ] pending   [>] doing   [✓] done   [✗] blocked (with reason)

With --watch, re-render whenever the plan file changes.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "re-render on plan file changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	root, err := controlRoot()
	if err != nil {
		return err
	}
	controlDir := filepath.Join(root, cfg.Paths.ControlDir)
	planPath := filepath.Join(controlDir, "plan.json")

	if err := printStatus(planPath, controlDir); err != nil {
		return err
	}
	if !statusWatch {
		return nil
	}
	return watchStatus(cmd, planPath, controlDir)
}

func printStatus(planPath, controlDir string) error {
	doc, err := plan.Load(planPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No plan yet. Run 'foreman run <task>' to start.")
			return nil
		}
		return err
	}

	fmt.Print(plan.RenderTree(doc))
	if doc.IsComplete() {
		fmt.Println("\nAll steps done.")
	}
	return printRecentRuns(controlDir)
}

// printRecentRuns lists recent runs from the ledger, if one exists.
func printRecentRuns(controlDir string) error {
	dbPath := filepath.Join(controlDir, "foreman.db")
	if _, err := os.Stat(dbPath); err != nil {
		return nil
	}
	ledger, err := workspace.OpenLedger(dbPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.RecentRuns(5)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	fmt.Println("\nRecent runs:")
	for _, run := range runs {
		fmt.Printf("  %s  %s\n", run.StartedAt.Format("2006-01-02 15:04"), run.Title)
	}
	return nil
}

// watchStatus blocks, re-rendering the tree whenever the plan file changes.
// The watch is on the containing directory because editors and the
// orchestrator replace the file rather than writing in place.
func watchStatus(cmd *cobra.Command, planPath, controlDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(filepath.Dir(planPath), 0755); err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(planPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(planPath), err)
	}

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != planPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			fmt.Print("\033[H\033[2J")
			if err := printStatus(planPath, controlDir); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
