package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/linter"
)

// defaultLintTarget is the stack definition package.
const defaultLintTarget = "./infra/..."

var errLintIssues = errors.New("lint found issues")

func newLintCmd() *cobra.Command {
	var (
		outputFormat string
		rules        []string
	)

	cmd := &cobra.Command{
		Use:   "lint [packages...]",
		Short: "Check the stack definition source for issues",
		Long: `Lint analyzes the Go source of the stack definition for patterns that
bypass the typed template toolkit: raw intrinsic maps, hardcoded pseudo
parameters and policy versions, and duplicate or literal logical IDs.

Examples:
    hellostack lint
    hellostack lint ./infra/... --rules HS002,HS004
    hellostack lint -f json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{defaultLintTarget}
			}
			return runLint(cmd.OutOrStdout(), args, outputFormat, linter.Options{EnabledRules: rules})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Rule IDs to run (default: all)")

	return cmd
}

func runLint(w io.Writer, packages []string, format string, opts linter.Options) error {
	combined := linter.Result{Success: true}
	for _, pkg := range packages {
		result, err := linter.LintPackage(pkg, opts)
		if err != nil {
			return fmt.Errorf("linting %s: %w", pkg, err)
		}
		combined.Issues = append(combined.Issues, result.Issues...)
		combined.Success = combined.Success && result.Success
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(combined, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case "text":
		if combined.Success {
			fmt.Fprintln(w, "No issues found.")
			return nil
		}
		for _, issue := range combined.Issues {
			fmt.Fprintln(w, issue)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !combined.Success {
		return errLintIssues
	}
	return nil
}
