// Package git provides the version-control primitives Foreman needs to
// isolate plan steps on branches and worktrees. All repository mutation is
// routed through the Client interface so the orchestrator never shells out to
// git directly.
package git

import "errors"

// ErrDetachedHead indicates no named branch is checked out. Foreman needs a
// stable starting branch to compute relative merges.
var ErrDetachedHead = errors.New("detached HEAD; run foreman from a named branch")

// BranchOperations defines branch queries.
type BranchOperations interface {
	// CurrentBranch returns the branch checked out in dir.
	// Returns ErrDetachedHead if HEAD is detached.
	CurrentBranch(dir string) (string, error)
	// BranchExists returns true if refs/heads/<name> exists.
	BranchExists(name string) (bool, error)
}

// WorktreeOperations defines worktree management.
type WorktreeOperations interface {
	// Worktrees returns the live mapping of local branch name to worktree
	// path, parsed from `git worktree list --porcelain`.
	Worktrees() (map[string]string, error)
	// WorktreeAdd checks out an existing branch into a new worktree at path.
	WorktreeAdd(path, branch string) error
	// WorktreeAddNewBranch creates branch from baseRef and checks it out into
	// a new worktree at path.
	WorktreeAddNewBranch(path, branch, baseRef string) error
}

// HistoryOperations defines the read-only facts the orchestrator needs about
// a step branch.
type HistoryOperations interface {
	// MergeBase returns the common ancestor commit of branch and otherRef.
	MergeBase(dir, branch, otherRef string) (string, error)
	// DiffSince returns the unified diff from baseCommit to HEAD in dir.
	DiffSince(dir, baseCommit string) (string, error)
	// CommitsSince returns commit SHAs after baseCommit (exclusive), oldest
	// to newest.
	CommitsSince(dir, baseCommit string) ([]string, error)
}

// MutationOperations defines the state-changing primitives used around worker
// attempts.
type MutationOperations interface {
	// CommitAllIfNeeded stages everything and commits when the worktree is
	// dirty. A failing commit (hooks, nothing to commit) is swallowed so a
	// retried attempt is not derailed.
	CommitAllIfNeeded(dir, message string) error
	// ResetHard discards all work in dir back to ref. Destructive; used only
	// to roll back failed attempts.
	ResetHard(dir, ref string) error
	// MergeInto merges source into whatever branch is checked out in dir,
	// always recording a merge commit. Conflicts surface as errors.
	MergeInto(dir, source string) error
}

// Client is the full version-control contract.
type Client interface {
	BranchOperations
	WorktreeOperations
	HistoryOperations
	MutationOperations
}
