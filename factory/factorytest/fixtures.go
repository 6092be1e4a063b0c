// Package factorytest provides a recording ToolCaller and canned tool
// payloads for exercising the factory pipeline without a live service.
package factorytest

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed fixtures/*.json
var fixtureFS embed.FS

// Fixture names.
const (
	DryRun                = "dry_run"
	Execution             = "execution"
	ExecutionWithFailures = "execution_with_failures"
	Trace                 = "trace"
	TraceNotFound         = "trace_not_found"
	TraceFiltered         = "trace_filtered"
	RegistryAnthropic     = "registry_anthropic"
	RegistryOpenAI        = "registry_openai"
)

// Payload decodes the named fixture into the generic shape a JSON transport
// would produce (map[string]any, []any, float64, ...). Each call returns a
// fresh value so callers may mutate it.
func Payload(name string) map[string]any {
	data, err := fixtureFS.ReadFile("fixtures/" + name + ".json")
	if err != nil {
		panic(fmt.Sprintf("factorytest: unknown fixture %q", name))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("factorytest: decode fixture %q: %v", name, err))
	}
	return out
}

// With returns a copy of the named fixture with the given top-level fields
// replaced. A nil value deletes the field.
func With(name string, fields map[string]any) map[string]any {
	out := Payload(name)
	for k, v := range fields {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Raw returns the named fixture as JSON bytes.
func Raw(name string) json.RawMessage {
	data, err := fixtureFS.ReadFile("fixtures/" + name + ".json")
	if err != nil {
		panic(fmt.Sprintf("factorytest: unknown fixture %q", name))
	}
	return data
}
