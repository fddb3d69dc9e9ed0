package stage

import (
	"fmt"
	"strings"
)

// Mode selects how a stage maps inputs to outputs.
type Mode string

const (
	// ModeExpand maps every input to one output with the same id.
	ModeExpand Mode = "expand"
	// ModeSplit maps every input to 1..N children one level deeper.
	ModeSplit Mode = "split"
	// ModeMerge maps every sibling group to its parent one level up.
	ModeMerge Mode = "merge"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeExpand, ModeSplit, ModeMerge:
		return true
	}
	return false
}

func (m Mode) String() string {
	return strings.ToUpper(string(m))
}

// DepthDelta is the change in id depth between input and output.
func (m Mode) DepthDelta() int {
	switch m {
	case ModeSplit:
		return 1
	case ModeMerge:
		return -1
	default:
		return 0
	}
}

// ParseMode accepts the mode names case-insensitively.
func ParseMode(value string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.Valid() {
		return "", fmt.Errorf("stage: unknown mode %q (expected expand, split or merge)", value)
	}
	return mode, nil
}

// InferMode derives the mode from the wildcard arity of the input and output
// patterns: one more level splits, one fewer merges, equal expands.
func InferMode(inputDepth, outputDepth int) (Mode, error) {
	if inputDepth < 1 || outputDepth < 1 {
		return "", fmt.Errorf("stage: pattern depths must be >= 1 (input %d, output %d)", inputDepth, outputDepth)
	}
	switch outputDepth - inputDepth {
	case 0:
		return ModeExpand, nil
	case 1:
		return ModeSplit, nil
	case -1:
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("stage: cannot infer mode from depth %d to %d; stages move at most one level", inputDepth, outputDepth)
	}
}
