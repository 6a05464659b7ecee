// Package template provides CloudFormation template building from typed resources.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/serialize"
	"github.com/olatheander/aws-cdk-lambda-monorepo/intrinsics"
)

// FormatVersion is the only CloudFormation template format version.
const FormatVersion = "2010-09-09"

// Builder constructs CloudFormation templates from registered resources.
type Builder struct {
	description string
	resources   map[string]entry
	parameters  map[string]hellostack.Parameter
	outputs     map[string]hellostack.Output
	errs        []error
}

type entry struct {
	value     hellostack.Resource
	dependsOn []string
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		resources:   make(map[string]entry),
		parameters:  make(map[string]hellostack.Parameter),
		outputs:     make(map[string]hellostack.Output),
	}
}

// Add registers a resource under a logical name. Dependencies implied by
// Ref, Fn::GetAtt and Fn::Sub are derived at build time; dependsOn adds
// explicit DependsOn entries.
func (b *Builder) Add(name string, r hellostack.Resource, dependsOn ...string) {
	if err := b.checkName(name); err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.resources[name] = entry{value: r, dependsOn: dependsOn}
}

// AddParameter registers a template parameter.
func (b *Builder) AddParameter(name string, p hellostack.Parameter) {
	if err := b.checkName(name); err != nil {
		b.errs = append(b.errs, err)
		return
	}
	if p.Type == "" {
		p.Type = "String"
	}
	b.parameters[name] = p
}

// AddOutput registers a template output.
func (b *Builder) AddOutput(name string, o hellostack.Output) {
	if _, exists := b.outputs[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate output %q", name))
		return
	}
	b.outputs[name] = o
}

func (b *Builder) checkName(name string) error {
	if name == "" {
		return errors.New("empty logical name")
	}
	if _, exists := b.resources[name]; exists {
		return fmt.Errorf("duplicate logical name %q", name)
	}
	if _, exists := b.parameters[name]; exists {
		return fmt.Errorf("duplicate logical name %q", name)
	}
	return nil
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*hellostack.Template, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	template := &hellostack.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]hellostack.ResourceDef, len(b.resources)),
	}

	if len(b.parameters) > 0 {
		template.Parameters = make(map[string]hellostack.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			template.Parameters[name] = p
		}
	}

	for name, e := range b.resources {
		if e.value == nil {
			return nil, fmt.Errorf("resource %s: nil value", name)
		}
		props, err := serialize.Resource(e.value)
		if err != nil {
			return nil, fmt.Errorf("serializing %s: %w", name, err)
		}

		var dependsOn []string
		if len(e.dependsOn) > 0 {
			dependsOn = append(dependsOn, e.dependsOn...)
			sort.Strings(dependsOn)
		}

		template.Resources[name] = hellostack.ResourceDef{
			Type:       e.value.ResourceType(),
			Properties: props,
			DependsOn:  dependsOn,
		}
	}

	if len(b.outputs) > 0 {
		template.Outputs = make(map[string]hellostack.Output, len(b.outputs))
		for name, o := range b.outputs {
			value, err := normalize(o.Value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			o.Value = value
			template.Outputs[name] = o
		}
	}

	if err := CheckReferences(template); err != nil {
		return nil, err
	}
	if _, err := Order(template); err != nil {
		return nil, err
	}

	return template, nil
}

// normalize round-trips an intrinsic value to its generic JSON form.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckReferences reports every Ref, Fn::GetAtt or Fn::Sub target and
// DependsOn entry that names neither a resource, a parameter nor a
// pseudo parameter. GetAtt must target a resource.
func CheckReferences(t *hellostack.Template) error {
	var errs []error

	check := func(owner string, value any) {
		getAtts := make(map[string]bool)
		for _, name := range serialize.AttributeReferences(value) {
			getAtts[name] = true
		}
		for _, name := range serialize.References(value) {
			if intrinsics.PseudoParameters[name] {
				continue
			}
			if _, ok := t.Resources[name]; ok {
				continue
			}
			if _, ok := t.Parameters[name]; ok && !getAtts[name] {
				continue
			}
			errs = append(errs, fmt.Errorf("%s: unresolved reference to %q", owner, name))
		}
	}

	for _, name := range sortedKeys(t.Resources) {
		res := t.Resources[name]
		check(name, res.Properties)
		for _, dep := range res.DependsOn {
			if _, ok := t.Resources[dep]; !ok {
				errs = append(errs, fmt.Errorf("%s: DependsOn unknown resource %q", name, dep))
			}
		}
	}
	for _, name := range sortedKeys(t.Outputs) {
		check("output "+name, normalizeOrSelf(t.Outputs[name].Value))
	}

	return errors.Join(errs...)
}

func normalizeOrSelf(v any) any {
	if out, err := normalize(v); err == nil {
		return out
	}
	return v
}

// Dependencies returns, per resource, the sorted resources it depends on
// through references or DependsOn.
func Dependencies(t *hellostack.Template) map[string][]string {
	deps := make(map[string][]string, len(t.Resources))
	for name, res := range t.Resources {
		seen := make(map[string]bool)
		for _, ref := range serialize.References(res.Properties) {
			if _, ok := t.Resources[ref]; ok && ref != name {
				seen[ref] = true
			}
		}
		for _, dep := range res.DependsOn {
			if _, ok := t.Resources[dep]; ok {
				seen[dep] = true
			}
		}
		list := make([]string, 0, len(seen))
		for dep := range seen {
			list = append(list, dep)
		}
		sort.Strings(list)
		deps[name] = list
	}
	return deps
}

// Order returns the resources of t in dependency order, ties broken by name.
func Order(t *hellostack.Template) ([]string, error) {
	deps := Dependencies(t)

	// Build adjacency list
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range deps {
		graph[name] = nil
		inDegree[name] = 0
	}
	for name, list := range deps {
		for _, dep := range list {
			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(deps) {
		return nil, detectCycle(deps)
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func detectCycle(deps map[string][]string) error {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var stack []string

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		onPath[node] = true
		stack = append(stack, node)

		for _, dep := range deps[node] {
			if onPath[dep] {
				for i, name := range stack {
					if name == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						break
					}
				}
				return true
			}
			if !visited[dep] && findCycle(dep) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onPath[node] = false
		return false
	}

	for _, name := range sortedKeys(deps) {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) > 0 {
		return fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " → "))
	}
	return errors.New("circular dependency detected")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToJSON serializes the template to JSON.
func ToJSON(t *hellostack.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *hellostack.Template) ([]byte, error) {
	return yaml.Marshal(t)
}

// Parse reads a template from JSON, falling back to YAML.
func Parse(data []byte) (*hellostack.Template, error) {
	var t hellostack.Template
	if err := json.Unmarshal(data, &t); err == nil {
		return &t, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	// Re-encode through JSON so nested values share the JSON shapes.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if err := json.Unmarshal(jsonData, &t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &t, nil
}

// Load reads and parses a template file.
func Load(path string) (*hellostack.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}
