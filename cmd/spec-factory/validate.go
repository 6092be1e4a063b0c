package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"goa.design/specfactory/contract"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <contract> <file.json>",
		Short: "Check a JSON payload against a named contract",
		Long:  "Validate checks a payload file against one of: " + strings.Join(contract.Names(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	v, ok := contract.Lookup(name)
	if !ok {
		return exitError(exitConfig, "unknown contract %q (known: %s)", name, strings.Join(contract.Names(), ", "))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitConfig, "file not found: %s", path)
		}
		return fmt.Errorf("reading file: %w", err)
	}

	out := cmd.OutOrStdout()
	err = v.Validate(json.RawMessage(data))
	if err == nil {
		fmt.Fprintln(out, "ok")
		return nil
	}
	var ve *contract.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for _, issue := range ve.Issues {
		fmt.Fprintln(out, issue.String())
	}
	return exitError(exitValidation, "%s: %d issue(s)", name, len(ve.Issues))
}
