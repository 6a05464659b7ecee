package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/graph"
)

func newGraphCmd() *cobra.Command {
	var (
		outputFormat      string
		includeParameters bool
		clusterByService  bool
	)

	cmd := &cobra.Command{
		Use:   "graph [template]",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies.

The output can be rendered with Graphviz:
    hellostack graph | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    hellostack graph -f mermaid

Examples:
    hellostack graph
    hellostack graph -p              # include parameters
    hellostack graph -c              # cluster by service
    hellostack graph template.json   # graph a template file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var graphFormat graph.Format
			switch outputFormat {
			case "dot":
				graphFormat = graph.FormatDOT
			case "mermaid":
				graphFormat = graph.FormatMermaid
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", outputFormat)
			}

			tmpl, err := loadOrSynthesize(args)
			if err != nil {
				return err
			}
			if len(tmpl.Resources) == 0 {
				return fmt.Errorf("no resources found")
			}

			gen := &graph.Generator{
				Format:            graphFormat,
				IncludeParameters: includeParameters,
				ClusterByService:  clusterByService,
			}
			return gen.Generate(tmpl, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVarP(&clusterByService, "cluster", "c", false, "Cluster resources by AWS service")

	return cmd
}
