package workspace

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Word lists for human-readable worktree directory names. Short and boring on
// purpose: the names only need to be recognizable in a process listing.
var nameAdjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "copper", "crisp", "eager",
	"fresh", "gentle", "golden", "hardy", "keen", "lively", "lucid", "mellow",
	"nimble", "plain", "quiet", "rapid", "solid", "spry", "steady", "swift",
	"tidy", "vivid", "warm", "witty",
}

var nameNouns = []string{
	"anvil", "basin", "beacon", "birch", "canyon", "cedar", "comet", "delta",
	"ember", "fjord", "garnet", "glade", "harbor", "heron", "inlet", "jasper",
	"kestrel", "lantern", "maple", "meadow", "otter", "pebble", "quarry",
	"ridge", "sparrow", "thicket", "walnut", "willow",
}

// generateName returns a unique adjective-noun workspace name, consulting
// taken for collisions. After a bounded number of attempts it falls back to a
// uuid-suffixed name, which cannot collide in practice.
func generateName(rng *rand.Rand, taken func(string) (bool, error)) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("%s-%s",
			nameAdjectives[rng.IntN(len(nameAdjectives))],
			nameNouns[rng.IntN(len(nameNouns))])
		used, err := taken(name)
		if err != nil {
			return "", err
		}
		if !used {
			return name, nil
		}
	}
	return fmt.Sprintf("workspace-%s", uuid.New().String()[:8]), nil
}
