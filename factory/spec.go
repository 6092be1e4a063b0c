package factory

import "strings"

// BuildTestSpec renders a minimal well-formed spec with a single requirement
// and its acceptance criterion.
func BuildTestSpec(title, task string) string {
	return strings.Join([]string{
		"# " + title,
		"",
		"## Requirements",
		"- " + task,
		"",
		"## Acceptance Criteria",
		`- Task "` + task + `" is completed`,
	}, "\n")
}

// DefaultLiveSpec is the spec executed by live runs when none is configured.
const DefaultLiveSpec = "# Test Spec\n\n## Requirements\n- Simple test\n\n## Acceptance Criteria\n- Passes validation"
