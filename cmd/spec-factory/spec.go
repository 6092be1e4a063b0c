package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"goa.design/specfactory/factory"
)

func newSpecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Print a minimal test spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			title, _ := cmd.Flags().GetString("title")
			task, _ := cmd.Flags().GetString("task")
			_, err := fmt.Fprintln(cmd.OutOrStdout(), factory.BuildTestSpec(title, task))
			return err
		},
	}
	cmd.Flags().String("title", "Test Spec", "Spec title")
	cmd.Flags().String("task", "Simple test", "Single requirement")
	return cmd
}
