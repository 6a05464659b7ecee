// Package graph renders the resource dependency graph of a template in DOT
// or Mermaid format.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/serialize"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates dependency graphs from templates.
type Generator struct {
	// IncludeParameters adds template parameters as nodes.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByService groups resources by AWS service.
	ClusterByService bool
}

// Generate creates a dependency graph and writes it to w.
func (g *Generator) Generate(t *hellostack.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *hellostack.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(t *hellostack.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	names := sortedNames(t.Resources)
	if g.ClusterByService {
		g.addClusteredNodes(graph, t, names)
	} else {
		for _, name := range names {
			graph.Node(name).Label(nodeLabel(name, t.Resources[name].Type))
		}
	}

	if g.IncludeParameters {
		for _, name := range sortedNames(t.Parameters) {
			n := graph.Node(name)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			n.Label(name)
		}
	}

	deps := template.Dependencies(t)
	for _, name := range names {
		res := t.Resources[name]
		getAtts := toSet(serialize.AttributeReferences(res.Properties))
		explicit := toSet(res.DependsOn)
		from := graph.Node(name)

		for _, dep := range deps[name] {
			e := graph.Edge(from, graph.Node(dep))
			switch {
			case getAtts[dep]:
				e.Attr("color", "blue")
			case explicit[dep] && !referenced(res.Properties, dep):
				e.Attr("style", "dashed")
			}
		}

		if g.IncludeParameters {
			for _, ref := range serialize.References(res.Properties) {
				if _, ok := t.Parameters[ref]; ok {
					graph.Edge(from, graph.Node(ref)).Attr("style", "dotted")
				}
			}
		}
	}

	return graph
}

// addClusteredNodes groups resource nodes by service; services with a single
// resource are left unclustered.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *hellostack.Template, names []string) {
	byService := make(map[string][]string)
	for _, name := range names {
		service := extractService(t.Resources[name].Type)
		byService[service] = append(byService[service], name)
	}

	for _, service := range sortedNames(byService) {
		members := byService[service]
		parent := graph
		if len(members) > 1 {
			parent = graph.Subgraph("cluster_"+service, dot.ClusterOption{})
			parent.Attr("label", service)
			parent.Attr("style", "rounded")
			parent.Attr("bgcolor", "lightyellow")
		}
		for _, name := range members {
			parent.Node(name).Label(nodeLabel(name, t.Resources[name].Type))
		}
	}
}

func nodeLabel(name, cfType string) string {
	return name + "\\n[" + cfType + "]"
}

// extractService returns the service of a CloudFormation type,
// e.g. "AWS::EC2::VPC" -> "EC2".
func extractService(cfType string) string {
	parts := strings.Split(cfType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}

func referenced(props map[string]any, name string) bool {
	for _, ref := range serialize.References(props) {
		if ref == name {
			return true
		}
	}
	return false
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
