package contract

import (
	"encoding/json"
	"fmt"
)

type (
	// Mode discriminates the two execute_spec outcomes.
	Mode string

	// TraceSource reports where query_trace found the run.
	TraceSource string

	// Provider enumerates the model providers registry_import accepts.
	Provider string
)

const (
	// ModeDryRun marks a plan-only execute_spec outcome.
	ModeDryRun Mode = "dry_run"
	// ModeExecute marks an outcome produced by a real execution.
	ModeExecute Mode = "execute"

	// SourceDisk indicates the trace was read from the run log on disk.
	SourceDisk TraceSource = "disk"
	// SourceNotFound indicates no trace exists for the run.
	SourceNotFound TraceSource = "not_found"

	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderOpenAI    Provider = "openai"
)

// Providers lists the providers accepted by registry_import.
var Providers = []Provider{ProviderAnthropic, ProviderGoogle, ProviderOpenAI}

type (
	// ExecuteSpecInput is the execute_spec argument mapping.
	ExecuteSpecInput struct {
		Spec   string `json:"spec"`
		DryRun *bool  `json:"dryRun,omitempty"`
	}

	// QueryTraceInput is the query_trace argument mapping.
	QueryTraceInput struct {
		RunID     string  `json:"runId"`
		EventType *string `json:"eventType,omitempty"`
		Limit     *int    `json:"limit,omitempty"`
	}

	// RegistryImportInput is the registry_import argument mapping.
	RegistryImportInput struct {
		Provider Provider `json:"provider"`
		ModelID  string   `json:"modelId"`
		DryRun   *bool    `json:"dryRun,omitempty"`
	}
)

// Args returns the tool argument mapping. Unset optional fields are omitted.
func (in ExecuteSpecInput) Args() map[string]any {
	args := map[string]any{"spec": in.Spec}
	if in.DryRun != nil {
		args["dryRun"] = *in.DryRun
	}
	return args
}

// Args returns the tool argument mapping. Unset optional fields are omitted.
func (in QueryTraceInput) Args() map[string]any {
	args := map[string]any{"runId": in.RunID}
	if in.EventType != nil {
		args["eventType"] = *in.EventType
	}
	if in.Limit != nil {
		args["limit"] = *in.Limit
	}
	return args
}

// Args returns the tool argument mapping. Unset optional fields are omitted.
func (in RegistryImportInput) Args() map[string]any {
	args := map[string]any{
		"provider": string(in.Provider),
		"modelId":  in.ModelID,
	}
	if in.DryRun != nil {
		args["dryRun"] = *in.DryRun
	}
	return args
}

type (
	// SpecOutcome is the closed set of execute_spec results: *DryRunOutcome or
	// *ExecutionOutcome. Consumers switch on the concrete type.
	SpecOutcome interface {
		isSpecOutcome()
	}

	// DryRunOutcome is returned when execute_spec runs in dry-run mode. Spec
	// and DAG are owned by the remote service and kept opaque.
	DryRunOutcome struct {
		Mode Mode `json:"mode"`
		Spec any  `json:"spec"`
		DAG  any  `json:"dag"`
	}

	// ExecutionOutcome is returned when execute_spec actually runs the spec.
	// Analysis is nil unless at least one task failed.
	ExecutionOutcome struct {
		Mode      Mode `json:"mode"`
		Execution any  `json:"execution"`
		Analysis  any  `json:"analysis"`
	}

	// ExecutionSummary is a best-effort view over the opaque execution payload.
	ExecutionSummary struct {
		RunID          string   `json:"runId"`
		Status         string   `json:"status"`
		TasksCompleted int      `json:"tasksCompleted"`
		TasksFailed    int      `json:"tasksFailed"`
		DurationMs     int64    `json:"durationMs"`
		Artifacts      []string `json:"artifacts"`
	}
)

func (*DryRunOutcome) isSpecOutcome()    {}
func (*ExecutionOutcome) isSpecOutcome() {}

// ModeOf returns the discriminant of o. It panics on a nil outcome.
func ModeOf(o SpecOutcome) Mode {
	switch o.(type) {
	case *DryRunOutcome:
		return ModeDryRun
	case *ExecutionOutcome:
		return ModeExecute
	default:
		panic(fmt.Sprintf("contract: unknown spec outcome %T", o))
	}
}

// Summary decodes the execution payload. ok is false when the payload does
// not have the expected layout.
func (o *ExecutionOutcome) Summary() (s ExecutionSummary, ok bool) {
	data, err := json.Marshal(o.Execution)
	if err != nil {
		return s, false
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, false
	}
	return s, true
}

type (
	// TraceQueryOutcome is the query_trace result.
	TraceQueryOutcome struct {
		RunID       string           `json:"runId"`
		Events      []map[string]any `json:"events"`
		TotalEvents int              `json:"totalEvents"`
		Truncated   bool             `json:"truncated"`
		Source      TraceSource      `json:"source"`
	}

	// ModelEntry is a model registry record.
	ModelEntry struct {
		ID               string        `json:"id"`
		DisplayName      string        `json:"displayName"`
		Provider         string        `json:"provider"`
		ContextWindow    int           `json:"contextWindow"`
		OutputModalities []string      `json:"outputModalities"`
		InputModalities  []string      `json:"inputModalities"`
		ToolCapabilities []string      `json:"toolCapabilities"`
		SpecialFeatures  []string      `json:"specialFeatures"`
		Pricing          Pricing       `json:"pricing"`
		QualityScores    QualityScores `json:"qualityScores"`
		CLIName          string        `json:"cliName"`
		CLIModelName     string        `json:"cliModelName"`
	}

	// Pricing is expressed in currency units per million tokens.
	Pricing struct {
		InputPer1M  float64 `json:"inputPer1M"`
		OutputPer1M float64 `json:"outputPer1M"`
	}

	// QualityScores rates a model on a 0-10 scale.
	QualityScores struct {
		Reasoning      float64 `json:"reasoning"`
		CodeGeneration float64 `json:"codeGeneration"`
		Speed          float64 `json:"speed"`
		Cost           float64 `json:"cost"`
	}

	// RegistryImportOutcome is the registry_import result.
	RegistryImportOutcome struct {
		DryRun    bool       `json:"dryRun"`
		Entry     ModelEntry `json:"entry"`
		Persisted bool       `json:"persisted"`
		Warnings  []string   `json:"warnings"`
	}
)

// Consistent reports whether a dry-run import was left unpersisted. The
// registry_import contract does not guarantee it.
func (o *RegistryImportOutcome) Consistent() bool {
	return !o.DryRun || !o.Persisted
}
