package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
)

func newListCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list [template]",
		Short: "List the resources of the stack",
		Long: `List displays the logical ID and type of every resource, from the
synthesized stack or from a template file.

Examples:
    hellostack list
    hellostack list template.json --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := loadOrSynthesize(args)
			if err != nil {
				return err
			}
			return outputListResult(cmd.OutOrStdout(), listResources(tmpl), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func listResources(t *hellostack.Template) hellostack.ListResult {
	result := hellostack.ListResult{
		Resources: make([]hellostack.ListResource, 0, len(t.Resources)),
	}
	for _, name := range resourceNames(t) {
		res := t.Resources[name]
		result.Resources = append(result.Resources, hellostack.ListResource{
			Name:      name,
			Type:      res.Type,
			DependsOn: res.DependsOn,
		})
	}
	return result
}

func outputListResult(w io.Writer, result hellostack.ListResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if len(result.Resources) == 0 {
			fmt.Fprintln(w, "No resources found.")
			return nil
		}

		fmt.Fprintf(w, "Resources (%d):\n\n", len(result.Resources))
		for _, res := range result.Resources {
			fmt.Fprintf(w, "  %s: %s\n", res.Name, res.Type)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}
