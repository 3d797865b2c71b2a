package docker

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Label key constants define the Docker labels put on every tool container.
// They let "doctor --prune" find containers that a crashed or interrupted
// run left behind, and make `docker ps` output self-explanatory.
//
// All keys share the "matchering." prefix to avoid collisions with labels
// set by other tools.
const (
	// LabelPrefix is the common prefix for all matchering-bridge labels.
	LabelPrefix = "matchering."

	// LabelManagedBy identifies containers created by matchering-bridge.
	// Key: "matchering.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelTool stores the tool the container runs, e.g.
	// "matchering_analyzer.py".
	LabelTool = LabelPrefix + "tool"

	// LabelRunID correlates containers with the log lines of one CLI run.
	LabelRunID = LabelPrefix + "run-id"

	// LabelCreatedAt stores the RFC3339 creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "matchering-bridge"

// BuildLabels constructs the label map for a tool container.
func BuildLabels(args []string, runID string, now time.Time) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelTool:      ToolName(args),
		LabelCreatedAt: now.UTC().Format(time.RFC3339),
	}
	if runID != "" {
		labels[LabelRunID] = runID
	}
	return labels
}

// ToolName returns the base name of the script an argument list runs:
// the first argument that looks like a script, otherwise the executable.
func ToolName(args []string) string {
	for _, a := range args {
		if strings.HasSuffix(a, ".py") {
			return filepath.Base(a)
		}
	}
	if len(args) == 0 {
		return ""
	}
	return filepath.Base(args[0])
}

// ParseCreatedAt returns the creation time stored in a container's labels.
func ParseCreatedAt(labels map[string]string) (time.Time, error) {
	v, ok := labels[LabelCreatedAt]
	if !ok {
		return time.Time{}, fmt.Errorf("missing label %s", LabelCreatedAt)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}
	return t, nil
}

// FilterLabel returns the "key=value" label filter that selects containers
// managed by matchering-bridge.
func FilterLabel() string {
	return LabelManagedBy + "=" + ManagedByValue
}
