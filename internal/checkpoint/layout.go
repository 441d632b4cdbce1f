package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	stepDirPrefix = "checkpoint_"

	// IndexFile is the per-checkpoint index mapping parameter names to
	// their array specs.
	IndexFile = "checkpoint.json"
)

// stepDirName returns the directory name for a checkpoint step.
func stepDirName(step int64) string {
	return fmt.Sprintf("%s%d", stepDirPrefix, step)
}

// parseStepDir extracts the step number from a checkpoint directory name.
func parseStepDir(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, stepDirPrefix)
	if !ok {
		return 0, false
	}
	step, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || step < 0 {
		return 0, false
	}
	return step, true
}

// paramDirName flattens a slash-separated parameter name into a single
// path component. Parameter names never contain dots.
func paramDirName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
