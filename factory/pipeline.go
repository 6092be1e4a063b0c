package factory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"goa.design/specfactory/contract"
	"goa.design/specfactory/runtime/telemetry"
)

type (
	// Config selects the stages of a pipeline run.
	Config struct {
		// Spec is the markdown spec handed to execute_spec.
		Spec string `json:"spec" yaml:"spec"`
		// DryRun selects dry-run execution. Nil means true.
		DryRun *bool `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
		// TraceRunID enables the query_trace stage when non-empty.
		TraceRunID string `json:"traceRunId,omitempty" yaml:"traceRunId,omitempty"`
		// RegistryImport enables the registry_import stage when set.
		RegistryImport *RegistryImport `json:"registryImport,omitempty" yaml:"registryImport,omitempty"`
	}

	// RegistryImport names the model previewed by the registry_import stage.
	RegistryImport struct {
		Provider contract.Provider `json:"provider" yaml:"provider"`
		ModelID  string            `json:"modelId" yaml:"modelId"`
	}

	// Result holds one slot per stage. After Run returns without error exactly
	// one of SpecResult and SpecError is set; TraceResult and RegistryResult
	// are nil when their stage was not configured.
	Result struct {
		SpecResult     contract.SpecOutcome            `json:"specResult"`
		SpecError      *string                         `json:"specError"`
		TraceResult    *contract.TraceQueryOutcome     `json:"traceResult"`
		TraceError     *string                         `json:"traceError,omitempty"`
		RegistryResult *contract.RegistryImportOutcome `json:"registryResult"`
		RegistryError  *string                         `json:"registryError,omitempty"`
	}

	// StagePolicy controls how a stage failure affects the pipeline.
	StagePolicy struct {
		// Isolate records a failure in the stage's error slot and lets the
		// pipeline continue. When false the failure aborts Run.
		Isolate bool
	}

	// Policy assigns a StagePolicy to each stage.
	Policy struct {
		Spec     StagePolicy
		Trace    StagePolicy
		Registry StagePolicy
	}

	// Option configures Run.
	Option func(*pipeline)

	pipeline struct {
		id      string
		policy  Policy
		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
	}
)

// Stage outcomes reported on the factory.stage.calls counter.
const (
	OutcomeOK       = "ok"
	OutcomeAbsorbed = "absorbed"
	OutcomeFailed   = "failed"
)

// DefaultPolicy isolates execute_spec failures, which are expected while a
// spec is iterated on, and propagates query_trace and registry_import
// failures to the caller of Run.
func DefaultPolicy() Policy {
	return Policy{Spec: StagePolicy{Isolate: true}}
}

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(pl *pipeline) { pl.policy = p }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l telemetry.Logger) Option {
	return func(pl *pipeline) { pl.logger = l }
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(pl *pipeline) { pl.metrics = m }
}

// WithTracer sets the tracer. Defaults to a no-op tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(pl *pipeline) { pl.tracer = t }
}

// WithPipelineID sets the identifier attached to logs and spans. Defaults to
// a random "specfactory-<uuid>" value.
func WithPipelineID(id string) Option {
	return func(pl *pipeline) { pl.id = id }
}

// IsDryRun returns the effective dry-run setting.
func (c Config) IsDryRun() bool {
	return c.DryRun == nil || *c.DryRun
}

// Run executes the configured stages in order: execute_spec, then
// query_trace when TraceRunID is set, then registry_import when
// RegistryImport is set. Stages run sequentially and later stages run even
// when execute_spec failed. Failures of isolated stages are recorded in the
// Result; any other failure is returned and stops the pipeline.
func Run(ctx context.Context, caller ToolCaller, cfg Config, opts ...Option) (*Result, error) {
	p := &pipeline{
		id:      "specfactory-" + uuid.NewString(),
		policy:  DefaultPolicy(),
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(p)
	}

	ctx, span := p.tracer.Start(ctx, "factory.pipeline",
		trace.WithAttributes(telemetry.KeyValues("factory.pipeline_id", p.id, "factory.dry_run", cfg.IsDryRun())...))
	defer span.End()

	var res Result

	specErr, err := p.stage(ctx, ToolExecuteSpec, p.policy.Spec, func(ctx context.Context) error {
		out, err := ExecuteSpec(ctx, caller, cfg.Spec, cfg.IsDryRun())
		if err != nil {
			return err
		}
		res.SpecResult = out
		return nil
	})
	if err != nil {
		return p.abort(span, err)
	}
	res.SpecError = specErr

	if cfg.TraceRunID != "" {
		res.TraceError, err = p.stage(ctx, ToolQueryTrace, p.policy.Trace, func(ctx context.Context) error {
			out, err := QueryTrace(ctx, caller, cfg.TraceRunID)
			if err != nil {
				return err
			}
			res.TraceResult = out
			return nil
		})
		if err != nil {
			return p.abort(span, err)
		}
	}

	if ri := cfg.RegistryImport; ri != nil {
		res.RegistryError, err = p.stage(ctx, ToolRegistryImport, p.policy.Registry, func(ctx context.Context) error {
			out, err := ImportModel(ctx, caller, ri.Provider, ri.ModelID)
			if err != nil {
				return err
			}
			if !out.Consistent() {
				p.logger.Warn(ctx, "dry-run import reported as persisted",
					"pipeline_id", p.id, "model_id", out.Entry.ID)
			}
			res.RegistryResult = out
			return nil
		})
		if err != nil {
			return p.abort(span, err)
		}
	}

	span.SetStatus(codes.Ok, "")
	return &res, nil
}

// stage runs fn under its own span. When fn fails and the stage is isolated
// the failure message is returned as the stage's error slot; otherwise the
// failure is returned unchanged. The tool name is only attached to the span
// and log entries.
func (p *pipeline) stage(ctx context.Context, tool string, pol StagePolicy, fn func(context.Context) error) (*string, error) {
	ctx, span := p.tracer.Start(ctx, "factory.stage."+tool,
		trace.WithAttributes(telemetry.KeyValues("factory.pipeline_id", p.id, "factory.tool", tool)...))
	defer span.End()

	p.logger.Debug(ctx, "stage started", "pipeline_id", p.id, "tool", tool)
	start := time.Now()
	err := fn(ctx)
	p.metrics.RecordTimer("factory.stage.duration", time.Since(start), "tool", tool)

	if err == nil {
		span.SetStatus(codes.Ok, "")
		p.metrics.IncCounter("factory.stage.calls", 1, "tool", tool, "outcome", OutcomeOK)
		p.logger.Info(ctx, "stage succeeded", "pipeline_id", p.id, "tool", tool)
		return nil, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if pol.Isolate {
		span.AddEvent("factory.stage.absorbed", "factory.tool", tool)
		p.metrics.IncCounter("factory.stage.calls", 1, "tool", tool, "outcome", OutcomeAbsorbed)
		p.logger.Warn(ctx, "stage failed, continuing", "pipeline_id", p.id, "tool", tool, "error", err.Error())
		msg := err.Error()
		return &msg, nil
	}
	p.metrics.IncCounter("factory.stage.calls", 1, "tool", tool, "outcome", OutcomeFailed)
	p.logger.Error(ctx, "stage failed", "pipeline_id", p.id, "tool", tool, "error", err.Error())
	return nil, err
}

func (p *pipeline) abort(span telemetry.Span, err error) (*Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}
