package git

// NoopClient is the dry-run Client: it performs zero repository mutation and
// returns inert placeholder values so orchestration wiring can be
// smoke-tested without git.
type NoopClient struct{}

// NewNoopClient creates a dry-run git client.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// DryRunBranch is the fixed branch name reported in dry-run mode.
const DryRunBranch = "dryrun"

// DryRunMergeBase is the non-commit merge-base sentinel used in dry-run mode.
const DryRunMergeBase = "DRYRUN"

func (c *NoopClient) CurrentBranch(dir string) (string, error) { return DryRunBranch, nil }

func (c *NoopClient) BranchExists(name string) (bool, error) { return false, nil }

func (c *NoopClient) Worktrees() (map[string]string, error) { return map[string]string{}, nil }

func (c *NoopClient) WorktreeAdd(path, branch string) error { return nil }

func (c *NoopClient) WorktreeAddNewBranch(path, branch, baseRef string) error { return nil }

func (c *NoopClient) MergeBase(dir, branch, otherRef string) (string, error) {
	return DryRunMergeBase, nil
}

func (c *NoopClient) DiffSince(dir, baseCommit string) (string, error) { return "", nil }

func (c *NoopClient) CommitsSince(dir, baseCommit string) ([]string, error) { return nil, nil }

func (c *NoopClient) CommitAllIfNeeded(dir, message string) error { return nil }

func (c *NoopClient) ResetHard(dir, ref string) error { return nil }

func (c *NoopClient) MergeInto(dir, source string) error { return nil }

// Verify NoopClient implements Client at compile time.
var _ Client = (*NoopClient)(nil)
