package orchestrator

import (
	"hash/fnv"

	"github.com/fatih/color"
)

// tagPalette colors step tags so interleaved log lines from nested steps are
// easy to tell apart. The color for a step is stable across runs.
var tagPalette = []*color.Color{
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
	color.New(color.FgCyan),
	color.New(color.FgRed),
	color.New(color.FgWhite),
}

// stepTag returns the colored log tag for a step number.
func stepTag(number string) string {
	h := fnv.New32a()
	h.Write([]byte(number))
	c := tagPalette[h.Sum32()%uint32(len(tagPalette))]
	return c.Sprintf("step %s", number)
}
