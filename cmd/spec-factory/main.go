// Command spec-factory checks a live spec factory service against its
// published contracts.
//
// Live runs talk to the service over MCP and require NEXUS_LIVE=true; see
// package bridge for the NEXUS_MCP_* transport settings.
//
//	NEXUS_LIVE=true NEXUS_MCP_ENDPOINT=http://localhost:8080/rpc spec-factory run --trace-run-id run-1
//	spec-factory validate trace_query_outcome trace.json
//	spec-factory spec --title "Smoke" --task "Print hello"
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "spec-factory",
		Short:        "Contract tester for the spec factory tools",
		SilenceUsage: true,
		Version:      version,
	}
	root.SetVersionTemplate(fmt.Sprintf("spec-factory version %s\n", version))
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newSpecCmd())
	return root
}
