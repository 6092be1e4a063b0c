package contract_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/specfactory/contract"
	"goa.design/specfactory/factory/factorytest"
)

func TestExecuteSpecInputSchema(t *testing.T) {
	dryRun := true
	cases := []struct {
		name  string
		input any
		paths []string
	}{
		{"valid", contract.ExecuteSpecInput{Spec: "# Test\n## Requirements\n- Do thing", DryRun: &dryRun}, nil},
		{"without dryRun", map[string]any{"spec": "test"}, nil},
		{"empty spec", map[string]any{"spec": ""}, []string{"/spec"}},
		{"spec at limit", map[string]any{"spec": strings.Repeat("x", 50_000)}, nil},
		{"spec over limit", map[string]any{"spec": strings.Repeat("x", 50_001)}, []string{"/spec"}},
		{"limit counts code points", map[string]any{"spec": strings.Repeat("\U0001F600", 50_000)}, nil},
		{"code points over limit", map[string]any{"spec": strings.Repeat("\U0001F600", 50_001)}, []string{"/spec"}},
		{"wrong dryRun type", map[string]any{"spec": "test", "dryRun": "yes"}, []string{"/dryRun"}},
		{"missing spec", map[string]any{}, []string{""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := contract.ExecuteSpecInputSchema.Validate(tc.input)
			if tc.paths == nil {
				require.NoError(t, err)
				return
			}
			var ve *contract.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "execute_spec_input", ve.Contract)
			assert.Equal(t, tc.paths, ve.Paths())
		})
	}
}

func TestQueryTraceInputSchema(t *testing.T) {
	cases := []struct {
		name  string
		input map[string]any
		ok    bool
	}{
		{"run id only", map[string]any{"runId": "run-abc-123"}, true},
		{"all fields", map[string]any{"runId": "run-abc-123", "eventType": "model.called", "limit": 500}, true},
		{"empty run id", map[string]any{"runId": ""}, false},
		{"limit zero", map[string]any{"runId": "r", "limit": 0}, false},
		{"limit too large", map[string]any{"runId": "r", "limit": 501}, false},
		{"fractional limit", map[string]any{"runId": "r", "limit": 2.5}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := contract.QueryTraceInputSchema.Validate(tc.input)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRegistryImportInputSchema(t *testing.T) {
	for _, p := range contract.Providers {
		require.NoError(t, contract.RegistryImportInputSchema.Validate(map[string]any{"provider": string(p), "modelId": "m"}))
	}

	err := contract.RegistryImportInputSchema.Validate(map[string]any{"provider": "mistral", "modelId": ""})
	var ve *contract.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"/modelId", "/provider"}, ve.Paths())
}

func TestSpecOutcomeSchema(t *testing.T) {
	t.Run("dry run", func(t *testing.T) {
		out, err := contract.SpecOutcomeSchema.Parse(factorytest.Payload(factorytest.DryRun))
		require.NoError(t, err)
		dry, ok := out.(*contract.DryRunOutcome)
		require.True(t, ok)
		assert.Equal(t, contract.ModeDryRun, dry.Mode)
		assert.NotNil(t, dry.DAG)
	})

	t.Run("execution from raw JSON", func(t *testing.T) {
		out, err := contract.SpecOutcomeSchema.Parse(factorytest.Raw(factorytest.Execution))
		require.NoError(t, err)
		exec, ok := out.(*contract.ExecutionOutcome)
		require.True(t, ok)
		summary, ok := exec.Summary()
		require.True(t, ok)
		assert.Equal(t, "run-abc-123", summary.RunID)
		assert.Equal(t, []string{"output.txt"}, summary.Artifacts)
	})

	t.Run("analysis may be omitted", func(t *testing.T) {
		_, err := contract.SpecOutcomeSchema.Parse(factorytest.With(factorytest.Execution, map[string]any{"analysis": nil}))
		assert.NoError(t, err)
	})

	t.Run("dry run arm rejects execute mode", func(t *testing.T) {
		err := contract.DryRunOutcomeSchema.Validate(factorytest.With(factorytest.DryRun, map[string]any{"mode": "execute"}))
		var ve *contract.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"/mode"}, ve.Paths())
	})

	t.Run("mode resolves the arm", func(t *testing.T) {
		// A dry run payload relabelled as execute lacks "execution".
		_, err := contract.SpecOutcomeSchema.Parse(factorytest.With(factorytest.DryRun, map[string]any{"mode": "execute"}))
		var ve *contract.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "execution_outcome", ve.Contract)
	})

	for name, raw := range map[string]any{
		"missing mode":     map[string]any{"spec": map[string]any{}, "dag": map[string]any{}},
		"unknown mode":     map[string]any{"mode": "plan"},
		"non string mode":  map[string]any{"mode": 1},
		"not an object":    []any{"dry_run"},
		"null":             nil,
		"invalid json":     json.RawMessage(`{"mode":`),
		"not encodable":    map[string]any{"mode": make(chan int)},
		"empty raw object": json.RawMessage(`{}`),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := contract.SpecOutcomeSchema.Parse(raw)
			require.Error(t, err)
			assert.Nil(t, out)
			var ve *contract.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Issues)
		})
	}
}

func TestTraceQueryOutcomeSchema(t *testing.T) {
	for _, name := range []string{factorytest.Trace, factorytest.TraceNotFound, factorytest.TraceFiltered} {
		_, err := contract.TraceQueryOutcomeSchema.Parse(factorytest.Payload(name))
		require.NoError(t, err, name)
	}

	t.Run("not found with total", func(t *testing.T) {
		err := contract.TraceQueryOutcomeSchema.Validate(factorytest.With(factorytest.TraceNotFound, map[string]any{"totalEvents": 2}))
		var ve *contract.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"/totalEvents"}, ve.Paths())
	})

	t.Run("events must be objects", func(t *testing.T) {
		err := contract.TraceQueryOutcomeSchema.Validate(factorytest.With(factorytest.Trace, map[string]any{"events": []any{"task.started"}}))
		var ve *contract.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"/events/0"}, ve.Paths())
	})

	t.Run("integral numbers decode into integer fields", func(t *testing.T) {
		for _, total := range []string{"3.0", "3e0", "0.3e1"} {
			raw := strings.Replace(string(factorytest.Raw(factorytest.Trace)), `"totalEvents": 3`, `"totalEvents": `+total, 1)
			out, err := contract.TraceQueryOutcomeSchema.Parse(json.RawMessage(raw))
			require.NoError(t, err, total)
			assert.Equal(t, 3, out.TotalEvents, total)
		}

		_, err := contract.TraceQueryOutcomeSchema.Parse(json.RawMessage(
			strings.Replace(string(factorytest.Raw(factorytest.Trace)), `"totalEvents": 3`, `"totalEvents": 3.5`, 1)))
		var ve *contract.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"/totalEvents"}, ve.Paths())
	})

	t.Run("reports every mismatch", func(t *testing.T) {
		err := contract.TraceQueryOutcomeSchema.Validate(map[string]any{
			"runId":       7,
			"events":      []any{},
			"totalEvents": "3",
			"truncated":   "no",
			"source":      "disk",
		})
		var ve *contract.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"/runId", "/totalEvents", "/truncated"}, ve.Paths())
		assert.Contains(t, ve.Error(), "trace_query_outcome: invalid payload")
	})
}

func TestRegistryImportOutcomeSchema(t *testing.T) {
	out, err := contract.RegistryImportOutcomeSchema.Parse(factorytest.Payload(factorytest.RegistryOpenAI))
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-test", out.Entry.ID)
	assert.Equal(t, 128000, out.Entry.ContextWindow)
	assert.Empty(t, out.Entry.SpecialFeatures)

	raw := strings.Replace(string(factorytest.Raw(factorytest.RegistryAnthropic)), `"contextWindow": 200000`, `"contextWindow": 200000.0`, 1)
	out, err = contract.RegistryImportOutcomeSchema.Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 200000, out.Entry.ContextWindow)

	entry := factorytest.Payload(factorytest.RegistryAnthropic)["entry"].(map[string]any)
	_, err = contract.ModelEntrySchema.Parse(entry)
	require.NoError(t, err)

	entry["contextWindow"] = 0
	delete(entry["pricing"].(map[string]any), "outputPer1M")
	entry["qualityScores"].(map[string]any)["speed"] = "fast"
	err = contract.ModelEntrySchema.Validate(entry)
	var ve *contract.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"/contextWindow", "/pricing", "/qualityScores/speed"}, ve.Paths())
}

func TestParseDoesNotMutateInput(t *testing.T) {
	raw := factorytest.Payload(factorytest.Trace)
	before, err := json.Marshal(raw)
	require.NoError(t, err)

	out, err := contract.TraceQueryOutcomeSchema.Parse(raw)
	require.NoError(t, err)
	out.Events[0]["eventType"] = "mutated"

	after, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		"dry_run_outcome",
		"execute_spec_input",
		"execution_outcome",
		"model_entry",
		"query_trace_input",
		"registry_import_input",
		"registry_import_outcome",
		"spec_outcome",
		"trace_query_outcome",
	}, contract.Names())

	v, ok := contract.Lookup("spec_outcome")
	require.True(t, ok)
	assert.NoError(t, v.Validate(factorytest.Raw(factorytest.DryRun)))

	_, ok = contract.Lookup("unknown")
	assert.False(t, ok)
}

func TestDocumentIsSchema(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(contract.QueryTraceInputSchema.Document(), &doc))
	assert.Equal(t, "query_trace input", doc["title"])
}

func TestInputExamples(t *testing.T) {
	spec, err := contract.ExecuteSpecInputSchema.Parse(contract.ExecuteSpecInputSchema.Example())
	require.NoError(t, err)
	assert.NotEmpty(t, spec.Spec)

	trace, err := contract.QueryTraceInputSchema.Parse(contract.QueryTraceInputSchema.Example())
	require.NoError(t, err)
	assert.Equal(t, "run-abc-123", trace.RunID)

	_, err = contract.RegistryImportInputSchema.Parse(contract.RegistryImportInputSchema.Example())
	require.NoError(t, err)

	assert.Nil(t, contract.TraceQueryOutcomeSchema.Example())
}

func TestArgsOmitUnsetOptionals(t *testing.T) {
	assert.Equal(t, map[string]any{"spec": "s"}, contract.ExecuteSpecInput{Spec: "s"}.Args())
	assert.Equal(t, map[string]any{"runId": "r"}, contract.QueryTraceInput{RunID: "r"}.Args())
	assert.Equal(t, map[string]any{"provider": "google", "modelId": "m"},
		contract.RegistryImportInput{Provider: contract.ProviderGoogle, ModelID: "m"}.Args())
}
