// Package schedule computes dependency-respecting execution batches over
// sibling plan nodes.
package schedule

import (
	"fmt"
	"sort"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// DoneFunc reports whether the step with the given number is done. It is
// consulted fresh for every dependency check, so callers may back it with
// re-loaded external state. An error is treated as "not done" rather than
// propagated, which lets cross-scope dependencies deadlock cleanly instead of
// crashing.
type DoneFunc func(number string) (bool, error)

// DeadlockError indicates no remaining item is runnable: either a dependency
// cycle or an unmet prerequisite outside the scheduled set.
type DeadlockError struct {
	// Stuck lists the numbers of the items that cannot run, sorted.
	Stuck []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("no runnable items; dependency deadlock or unmet prerequisite(s): %v", e.Stuck)
}

// Run iterates frontier batches over a fixed set of sibling items. Each call
// to Next returns every not-yet-emitted item whose dependencies are all done
// at that moment, in the input order. Emitting an item does not mark it done;
// that is the caller's responsibility after executing it.
type Run struct {
	items     []models.Node
	isDone    DoneFunc
	remaining map[string]bool
}

// NewRun creates a batch iterator over items.
func NewRun(items []models.Node, isDone DoneFunc) *Run {
	remaining := make(map[string]bool, len(items))
	for _, item := range items {
		remaining[item.Number] = true
	}
	return &Run{items: items, isDone: isDone, remaining: remaining}
}

// Next computes the next frontier batch. It returns (nil, nil) when all items
// have been emitted, and a DeadlockError when items remain but none are
// runnable.
func (r *Run) Next() ([]models.Node, error) {
	if len(r.remaining) == 0 {
		return nil, nil
	}

	var batch []models.Node
	for _, item := range r.items {
		if !r.remaining[item.Number] {
			continue
		}
		if r.ready(item) {
			batch = append(batch, item)
		}
	}

	if len(batch) == 0 {
		stuck := make([]string, 0, len(r.remaining))
		for num := range r.remaining {
			stuck = append(stuck, num)
		}
		sort.Strings(stuck)
		return nil, &DeadlockError{Stuck: stuck}
	}

	for _, item := range batch {
		delete(r.remaining, item.Number)
	}
	return batch, nil
}

func (r *Run) ready(item models.Node) bool {
	for _, dep := range item.DependsOn {
		done, err := r.isDone(dep)
		if err != nil || !done {
			return false
		}
	}
	return true
}

// Batches drains a Run and returns every batch. It exists for callers that do
// not need to interleave execution with scheduling, and for tests.
func Batches(items []models.Node, isDone DoneFunc) ([][]models.Node, error) {
	run := NewRun(items, isDone)
	var out [][]models.Node
	for {
		batch, err := run.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return out, nil
		}
		out = append(out, batch)
	}
}
