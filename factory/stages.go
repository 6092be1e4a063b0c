package factory

import (
	"context"
	"errors"

	"goa.design/specfactory/contract"
)

// TraceOption configures an optional query_trace argument.
type TraceOption func(*contract.QueryTraceInput)

// WithEventType restricts the trace query to events of the given type.
func WithEventType(eventType string) TraceOption {
	return func(in *contract.QueryTraceInput) { in.EventType = &eventType }
}

// WithLimit caps the number of events returned.
func WithLimit(limit int) TraceOption {
	return func(in *contract.QueryTraceInput) { in.Limit = &limit }
}

// ExecuteSpec runs spec through execute_spec. The arguments are checked
// against the execute_spec input contract before any call is made.
func ExecuteSpec(ctx context.Context, caller ToolCaller, spec string, dryRun bool) (contract.SpecOutcome, error) {
	in := contract.ExecuteSpecInput{Spec: spec, DryRun: &dryRun}
	if err := contract.ExecuteSpecInputSchema.Validate(in); err != nil {
		return nil, rejected(ToolExecuteSpec, err)
	}
	raw, err := invoke(ctx, caller, ToolExecuteSpec, in.Args())
	if err != nil {
		return nil, err
	}
	return contract.SpecOutcomeSchema.Parse(raw)
}

// QueryTrace retrieves the execution trace of runID. Options left unset are
// omitted from the tool arguments.
func QueryTrace(ctx context.Context, caller ToolCaller, runID string, opts ...TraceOption) (*contract.TraceQueryOutcome, error) {
	in := contract.QueryTraceInput{RunID: runID}
	for _, o := range opts {
		o(&in)
	}
	raw, err := invoke(ctx, caller, ToolQueryTrace, in.Args())
	if err != nil {
		return nil, err
	}
	out, err := contract.TraceQueryOutcomeSchema.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportModel previews the registry entry for modelID. The import always runs
// with dryRun set so the registry is never mutated.
func ImportModel(ctx context.Context, caller ToolCaller, provider contract.Provider, modelID string) (*contract.RegistryImportOutcome, error) {
	dryRun := true
	in := contract.RegistryImportInput{Provider: provider, ModelID: modelID, DryRun: &dryRun}
	raw, err := invoke(ctx, caller, ToolRegistryImport, in.Args())
	if err != nil {
		return nil, err
	}
	out, err := contract.RegistryImportOutcomeSchema.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func invoke(ctx context.Context, caller ToolCaller, tool string, args map[string]any) (any, error) {
	raw, err := caller.Call(ctx, tool, args)
	if err != nil {
		return nil, &CapabilityError{Tool: tool, Err: err}
	}
	return raw, nil
}

func rejected(tool string, err error) error {
	var ve *contract.ValidationError
	if errors.As(err, &ve) {
		return &InputRejectedError{Tool: tool, Err: ve}
	}
	return err
}
