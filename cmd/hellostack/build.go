package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

func newBuildCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the CloudFormation template",
		Long: `Build synthesizes the stack into a CloudFormation template. Stage name,
description and architecture come from the configuration.

Examples:
    hellostack build
    hellostack build -o template.json
    hellostack build --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.OutOrStdout(), outputFormat, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runBuild(w io.Writer, format, outputFile string) error {
	tmpl, err := synthesize()
	if err != nil {
		return outputResult(w, hellostack.BuildResult{
			Success: false,
			Errors:  []string{err.Error()},
		}, format, outputFile)
	}

	return outputResult(w, hellostack.BuildResult{
		Success:   true,
		Template:  *tmpl,
		Resources: resourceNames(tmpl),
	}, format, outputFile)
}

// synthesize renders the stack described by the configuration.
func synthesize() (*hellostack.Template, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return infra.Synthesize(cfg.StackProps())
}

// loadOrSynthesize reads the template file named by args, or synthesizes
// the stack when there is none.
func loadOrSynthesize(args []string) (*hellostack.Template, error) {
	if len(args) > 0 {
		return template.Load(args[0])
	}
	return synthesize()
}

func resourceNames(t *hellostack.Template) []string {
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func renderTemplate(t *hellostack.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(t)
	case "yaml":
		return template.ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

func outputResult(w io.Writer, result hellostack.BuildResult, format, outputFile string) error {
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("build failed")
	}

	data, err := renderTemplate(&result.Template, format)
	if err != nil {
		return err
	}

	if outputFile == "" {
		fmt.Fprintln(w, string(data))
		return nil
	}

	return os.WriteFile(outputFile, data, 0644)
}
