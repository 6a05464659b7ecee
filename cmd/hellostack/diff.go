package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/differ"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

func newDiffCmd() *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "diff <old> [new]",
		Short: "Compare two templates semantically",
		Long: `Diff reports resources added, removed or modified between two templates.
With a single argument the file is compared with the synthesized stack.

Examples:
    hellostack diff deployed.json
    hellostack diff old.yaml new.json --ignore-order
    hellostack diff deployed.json -f json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), args, outputFormat, differ.Options{IgnoreOrder: ignoreOrder})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore array element order")

	return cmd
}

func runDiff(w io.Writer, args []string, format string, opts differ.Options) error {
	old, err := template.Load(args[0])
	if err != nil {
		return err
	}
	current, err := loadOrSynthesize(args[1:])
	if err != nil {
		return err
	}

	result, err := differ.Compare(old, current, opts)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(hellostack.DiffResult{
			Success: true,
			Diff:    result.Diff,
			Summary: result.Summary,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case "text":
		differ.Render(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}
