// Package differ provides semantic comparison of CloudFormation templates.
package differ

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/r3labs/diff/v2"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    hellostack.TemplateDiff
	Summary hellostack.DiffSummary
}

// Empty reports whether the templates are equivalent.
func (r *Result) Empty() bool {
	return r.Summary.Total == 0
}

// Compare compares two CloudFormation templates and returns differences.
func Compare(template1, template2 *hellostack.Template, opts Options) (*Result, error) {
	result := &Result{}

	res1 := template1.Resources
	res2 := template2.Resources

	for name, def := range res2 {
		if _, exists := res1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, hellostack.DiffEntry{
				Resource: name,
				Type:     def.Type,
			})
		}
	}

	for name, def := range res1 {
		if _, exists := res2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, hellostack.DiffEntry{
				Resource: name,
				Type:     def.Type,
			})
		}
	}

	for name, def1 := range res1 {
		def2, exists := res2[name]
		if !exists {
			continue
		}
		changes, err := compareResources(def1, def2, opts)
		if err != nil {
			return nil, fmt.Errorf("comparing %s: %w", name, err)
		}
		if len(changes) > 0 {
			result.Diff.Modified = append(result.Diff.Modified, hellostack.DiffEntry{
				Resource: name,
				Type:     def2.Type,
				Changes:  changes,
			})
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = hellostack.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified

	return result, nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := template.Load(file1)
	if err != nil {
		return nil, err
	}
	t2, err := template.Load(file2)
	if err != nil {
		return nil, err
	}
	return Compare(t1, t2, opts)
}

// compareResources compares two resource definitions and returns changes.
func compareResources(def1, def2 hellostack.ResourceDef, opts Options) ([]string, error) {
	var changes []string

	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}

	propChanges, err := compareProperties(def1.Properties, def2.Properties, opts)
	if err != nil {
		return nil, err
	}
	changes = append(changes, propChanges...)

	if !equalStrings(def1.DependsOn, def2.DependsOn, opts.IgnoreOrder) {
		changes = append(changes, "DependsOn changed")
	}

	return changes, nil
}

// compareProperties lists the property paths that differ, one entry per
// top-most changed path.
func compareProperties(props1, props2 map[string]any, opts Options) ([]string, error) {
	p1, err := jsonForm(props1)
	if err != nil {
		return nil, err
	}
	p2, err := jsonForm(props2)
	if err != nil {
		return nil, err
	}

	changelog, err := diff.Diff(p1, p2, diff.SliceOrdering(!opts.IgnoreOrder))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var changes []string
	for _, c := range changelog {
		line := strings.Join(c.Path, ".") + " " + describe(c.Type)
		if !seen[line] {
			seen[line] = true
			changes = append(changes, line)
		}
	}
	sort.Strings(changes)
	return changes, nil
}

// jsonForm re-encodes props through JSON so a synthesized template and a
// parsed one hold the same value types (float64 numbers, plain maps in
// place of intrinsic structs).
func jsonForm(props map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(props) == 0 {
		return out, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func describe(changeType string) string {
	switch changeType {
	case diff.CREATE:
		return "added"
	case diff.DELETE:
		return "removed"
	default:
		return "modified"
	}
}

func equalStrings(a, b []string, ignoreOrder bool) bool {
	if len(a) != len(b) {
		return false
	}
	if ignoreOrder {
		a = append([]string(nil), a...)
		b = append([]string(nil), b...)
		sort.Strings(a)
		sort.Strings(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []hellostack.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}

// Render writes a human-readable report of r. Colors follow the
// color.NoColor setting.
func Render(w io.Writer, r *Result) {
	if r.Empty() {
		fmt.Fprintln(w, "No differences")
		return
	}

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	modified := color.New(color.FgYellow)

	for _, e := range r.Diff.Added {
		added.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range r.Diff.Removed {
		removed.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range r.Diff.Modified {
		modified.Fprintf(w, "~ %s (%s)\n", e.Resource, e.Type)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "    %s\n", c)
		}
	}
	fmt.Fprintf(w, "\n%d added, %d removed, %d modified\n", r.Summary.Added, r.Summary.Removed, r.Summary.Modified)
}
