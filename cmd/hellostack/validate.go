package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/validation"
)

// errValidationFailed is returned after the report has been printed.
var errValidationFailed = errors.New("validation failed")

// newValidateCmd creates the "validate" subcommand for checking template validity.
func newValidateCmd() *cobra.Command {
	var (
		outputFormat string
		skipLint     bool
	)

	cmd := &cobra.Command{
		Use:   "validate [template]",
		Short: "Validate references and cfn-lint rules",
		Long: `Validate checks the synthesized stack, or a template file.

Checks performed:
  - Reference validity: every Ref, GetAtt and Sub names a resource,
    parameter or pseudo parameter
  - DependsOn targets exist
  - cfn-lint rules (skip with --skip-lint)

Examples:
    hellostack validate
    hellostack validate template.yaml --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := loadOrSynthesize(args)
			if err != nil {
				return err
			}
			result, err := (&validation.Validator{SkipLint: skipLint}).Validate(tmpl)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			return outputValidateResult(cmd.OutOrStdout(), *result, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "Only check references")

	return cmd
}

func outputValidateResult(w io.Writer, result hellostack.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if result.Success {
			color.New(color.FgGreen).Fprintf(w, "Validation passed: %d resources OK\n", result.Resources)
			for _, warnMsg := range result.Warnings {
				color.New(color.FgYellow).Fprintf(w, "  WARNING: %s\n", warnMsg)
			}
			return nil
		}

		color.New(color.FgRed).Fprintln(w, "Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return errValidationFailed
	}

	return nil
}
