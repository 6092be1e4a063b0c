package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
	"gopkg.in/yaml.v3"

	"goa.design/specfactory/bridge"
	"goa.design/specfactory/contract"
	"goa.design/specfactory/factory"
	"goa.design/specfactory/runtime/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline against the live service",
		Long: "Run executes execute_spec, then query_trace and registry_import when configured,\n" +
			"and prints the pipeline result as JSON. NEXUS_LIVE=true is required.",
		Args: cobra.NoArgs,
		RunE: runPipeline,
	}
	cmd.Flags().String("config", "", "YAML pipeline configuration file")
	cmd.Flags().String("spec-file", "", "Markdown spec to execute (overrides the config spec)")
	cmd.Flags().Bool("execute", false, "Execute the spec instead of a dry run")
	cmd.Flags().String("trace-run-id", "", "Run identifier to query with query_trace")
	cmd.Flags().String("provider", "", "Provider for registry_import (anthropic, google, openai)")
	cmd.Flags().String("model-id", "", "Model identifier for registry_import")
	return cmd
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if !bridge.LiveEnabled() {
		return exitError(exitConfig, "%s=true is required for live runs", bridge.EnvLive)
	}
	cfg, err := pipelineConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := bridge.OptionsFromEnv()
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	ctx := logContext(cmd)
	shutdown, err := setupOpenTelemetry(ctx)
	if err != nil {
		return exitError(exitConfig, "configure OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Errorf(ctx, err, "shutdown OpenTelemetry")
		}
	}()

	logger := telemetry.NewClueLogger()
	b, err := bridge.Open(ctx, opts, bridge.WithLogger(logger))
	if err != nil {
		return exitError(exitBridge, "connect to %s transport: %v", opts.Transport, err)
	}
	defer func() { _ = b.Close() }()

	res, err := factory.Run(ctx, b, cfg,
		factory.WithLogger(logger),
		factory.WithTracer(telemetry.NewTracer(nil)),
		factory.WithMetrics(telemetry.NewMetrics()),
	)
	if err != nil {
		return exitError(exitStage, "%v", err)
	}
	if exec, ok := res.SpecResult.(*contract.ExecutionOutcome); ok {
		if s, ok := exec.Summary(); ok {
			logger.Info(ctx, "execution summary",
				"run_id", s.RunID,
				"status", s.Status,
				"tasks_completed", s.TasksCompleted,
				"tasks_failed", s.TasksFailed)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// pipelineConfig loads --config and applies the command line overrides.
func pipelineConfig(cmd *cobra.Command) (factory.Config, error) {
	var cfg factory.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if path, _ := cmd.Flags().GetString("spec-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, exitError(exitConfig, "reading spec file: %v", err)
		}
		cfg.Spec = string(data)
	}
	if cfg.Spec == "" {
		cfg.Spec = factory.DefaultLiveSpec
	}
	if cmd.Flags().Changed("execute") {
		execute, _ := cmd.Flags().GetBool("execute")
		dryRun := !execute
		cfg.DryRun = &dryRun
	}
	if id, _ := cmd.Flags().GetString("trace-run-id"); id != "" {
		cfg.TraceRunID = id
	}
	provider, _ := cmd.Flags().GetString("provider")
	modelID, _ := cmd.Flags().GetString("model-id")
	switch {
	case provider != "" && modelID != "":
		cfg.RegistryImport = &factory.RegistryImport{Provider: contract.Provider(provider), ModelID: modelID}
	case provider != "" || modelID != "":
		return cfg, exitError(exitConfig, "--provider and --model-id must be set together")
	}
	if ri := cfg.RegistryImport; ri != nil {
		in := contract.RegistryImportInput{Provider: ri.Provider, ModelID: ri.ModelID}
		if err := contract.RegistryImportInputSchema.Validate(in.Args()); err != nil {
			return cfg, exitError(exitConfig, "invalid registry import: %v", err)
		}
	}
	return cfg, nil
}

func loadConfig(path string) (factory.Config, error) {
	var cfg factory.Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, exitError(exitConfig, "config file not found: %s", path)
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, exitError(exitConfig, "parsing config %s: %v", path, err)
	}
	return cfg, nil
}

// logContext configures clue logging on stderr so stdout only carries the
// JSON result.
func logContext(cmd *cobra.Command) context.Context {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(cmd.Context(), log.WithFormat(format), log.WithOutput(cmd.ErrOrStderr()))
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	return ctx
}
