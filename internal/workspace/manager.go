package workspace

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/tmcfarlane/foreman/internal/git"
)

// Workspace is an ephemeral (branch, path) pair: one plan step's branch
// checked out into its own directory. It is never persisted; the live
// worktree listing is the source of truth across runs.
type Workspace struct {
	Branch string
	Path   string
}

// Manager ensures each branch has a dedicated worktree under the worktrees
// directory, allocating human-readable directory names through the ledger.
type Manager struct {
	git          git.Client
	worktreesDir string
	ledger       *Ledger
	rng          *rand.Rand
	// dryRun short-circuits Ensure to the control root with no allocation.
	dryRun      bool
	controlRoot string
}

// NewManager creates a workspace manager.
func NewManager(gitClient git.Client, worktreesDir string, ledger *Ledger) *Manager {
	return &Manager{
		git:          gitClient,
		worktreesDir: worktreesDir,
		ledger:       ledger,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewDryRunManager creates a manager whose Ensure returns the control root
// without touching the filesystem or git.
func NewDryRunManager(controlRoot string) *Manager {
	return &Manager{dryRun: true, controlRoot: controlRoot}
}

// Ensure returns the workspace for branch, creating one if none exists.
// Idempotent: an existing worktree for the branch (queried live) is reused.
// A new workspace reuses the branch when it already exists, otherwise the
// branch is created from baseRef.
func (m *Manager) Ensure(branch, baseRef string) (Workspace, error) {
	if m.dryRun {
		return Workspace{Branch: branch, Path: m.controlRoot}, nil
	}

	worktrees, err := m.git.Worktrees()
	if err != nil {
		return Workspace{}, fmt.Errorf("list worktrees: %w", err)
	}
	if path, ok := worktrees[branch]; ok {
		return Workspace{Branch: branch, Path: path}, nil
	}

	if err := os.MkdirAll(m.worktreesDir, 0755); err != nil {
		return Workspace{}, fmt.Errorf("create worktrees directory: %w", err)
	}

	name, err := generateName(m.rng, m.ledger.NameTaken)
	if err != nil {
		return Workspace{}, fmt.Errorf("allocate workspace name: %w", err)
	}
	if err := m.ledger.ReserveName(name, branch); err != nil {
		return Workspace{}, err
	}

	path, err := filepath.Abs(filepath.Join(m.worktreesDir, name))
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve workspace path: %w", err)
	}

	exists, err := m.git.BranchExists(branch)
	if err != nil {
		return Workspace{}, err
	}
	if exists {
		err = m.git.WorktreeAdd(path, branch)
	} else {
		err = m.git.WorktreeAddNewBranch(path, branch, baseRef)
	}
	if err != nil {
		return Workspace{}, err
	}

	return Workspace{Branch: branch, Path: path}, nil
}
