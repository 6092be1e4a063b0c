package contract

import (
	"encoding/json"
	"fmt"
)

var (
	// ExecuteSpecInputSchema validates execute_spec arguments.
	ExecuteSpecInputSchema = newSchema[ExecuteSpecInput]("execute_spec_input")
	// DryRunOutcomeSchema validates the dry_run arm of the execute_spec result.
	DryRunOutcomeSchema = newSchema[DryRunOutcome]("dry_run_outcome")
	// ExecutionOutcomeSchema validates the execute arm of the execute_spec result.
	ExecutionOutcomeSchema = newSchema[ExecutionOutcome]("execution_outcome")

	// QueryTraceInputSchema validates query_trace arguments.
	QueryTraceInputSchema = newSchema[QueryTraceInput]("query_trace_input")
	// TraceQueryOutcomeSchema validates the query_trace result.
	TraceQueryOutcomeSchema = newSchema[TraceQueryOutcome]("trace_query_outcome")

	// RegistryImportInputSchema validates registry_import arguments.
	RegistryImportInputSchema = newSchema[RegistryImportInput]("registry_import_input")
	// ModelEntrySchema validates a single registry entry.
	ModelEntrySchema = newSchema[ModelEntry]("model_entry")
	// RegistryImportOutcomeSchema validates the registry_import result.
	RegistryImportOutcomeSchema = newSchema[RegistryImportOutcome]("registry_import_outcome")

	// SpecOutcomeSchema validates the execute_spec result, resolving the arm
	// from the "mode" discriminant alone.
	SpecOutcomeSchema = newUnion()
)

// UnionSchema is the tagged union contract for execute_spec results.
type UnionSchema struct {
	dryRun  *Schema[DryRunOutcome]
	execute *Schema[ExecutionOutcome]
}

func newUnion() *UnionSchema {
	u := &UnionSchema{dryRun: DryRunOutcomeSchema, execute: ExecutionOutcomeSchema}
	register(u)
	return u
}

// Name returns the contract identifier.
func (u *UnionSchema) Name() string { return "spec_outcome" }

// Validate checks raw against the union without retaining the result.
func (u *UnionSchema) Validate(raw any) error {
	_, err := u.Parse(raw)
	return err
}

// Parse resolves the arm named by raw's "mode" field and validates raw
// against it. A missing or unknown mode fails without trying either arm.
func (u *UnionSchema) Parse(raw any) (SpecOutcome, error) {
	doc, err := normalize(raw)
	if err != nil {
		return nil, rootIssue(u.Name(), err.Error())
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, rootIssue(u.Name(), fmt.Sprintf("got %s, want object", jsonKind(doc)))
	}
	mode, ok := obj["mode"]
	if !ok {
		return nil, &ValidationError{Contract: u.Name(), Issues: []Issue{{
			Path:    "/mode",
			Message: fmt.Sprintf("missing discriminant, want one of %q, %q", ModeDryRun, ModeExecute),
		}}}
	}
	switch mode {
	case string(ModeDryRun):
		out, err := u.dryRun.parseNormalized(doc)
		if err != nil {
			return nil, err
		}
		return &out, nil
	case string(ModeExecute):
		out, err := u.execute.parseNormalized(doc)
		if err != nil {
			return nil, err
		}
		return &out, nil
	default:
		return nil, &ValidationError{Contract: u.Name(), Issues: []Issue{{
			Path:    "/mode",
			Message: fmt.Sprintf("unrecognized discriminant %s, want one of %q, %q", compact(mode), ModeDryRun, ModeExecute),
		}}}
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "number"
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
