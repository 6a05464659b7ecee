// Package linter checks the Go source of the stack definition for patterns
// that bypass the typed template toolkit.
//
// Rules:
//
//	HS001: Use pseudo-parameter variables instead of hardcoded strings
//	HS002: Use intrinsic types instead of raw map[string]any
//	HS003: Use NewPolicyDocument instead of a hardcoded policy version
//	HS004: A logical ID is declared twice in one file
//	HS005: Declare logical IDs as named constants
package linter

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding.
type Issue struct {
	Rule       string   `json:"rule"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Severity   Severity `json:"severity"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s [%s]", i.File, i.Line, i.Column, i.Severity, i.Message, i.Rule)
}

// Result contains the outcome of linting.
type Result struct {
	Success bool    `json:"success"`
	Issues  []Issue `json:"issues"`
}

// Options configures the linter.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
}

// LintFile lints a single Go file.
func LintFile(path string, opts Options) (Result, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return Result{}, err
	}

	return newResult(checkFile(file, fset, getRules(opts))), nil
}

// LintSource lints Go source held in memory; name is used in positions.
func LintSource(name string, src []byte, opts Options) (Result, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return Result{}, err
	}

	return newResult(checkFile(file, fset, getRules(opts))), nil
}

// LintPackage lints the non-test Go files of a package directory, or of
// every package below it when the path ends in "/...".
func LintPackage(pkgPath string, opts Options) (Result, error) {
	if strings.HasSuffix(pkgPath, "...") {
		root := strings.TrimSuffix(strings.TrimSuffix(pkgPath, "..."), "/")
		return lintRecursive(root, opts)
	}

	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		return Result{}, err
	}

	var issues []Issue
	for _, e := range entries {
		if e.IsDir() || !isSource(e.Name()) {
			continue
		}
		result, err := LintFile(filepath.Join(pkgPath, e.Name()), opts)
		if err != nil {
			return Result{}, err
		}
		issues = append(issues, result.Issues...)
	}

	return newResult(issues), nil
}

// lintRecursive lints all Go packages recursively.
func lintRecursive(root string, opts Options) (Result, error) {
	if root == "" {
		root = "."
	}

	var issues []Issue
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if path != root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isSource(info.Name()) {
			return nil
		}

		result, err := LintFile(path, opts)
		if err != nil {
			// Unparsable files are the compiler's business
			return nil
		}
		issues = append(issues, result.Issues...)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(issues), nil
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

func checkFile(file *ast.File, fset *token.FileSet, rules []Rule) []Issue {
	var issues []Issue
	for _, rule := range rules {
		issues = append(issues, rule.Check(file, fset)...)
	}
	return issues
}

func newResult(issues []Issue) Result {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Column < issues[j].Column
	})
	return Result{
		Success: len(issues) == 0,
		Issues:  issues,
	}
}

// getRules returns the rules to use based on options.
func getRules(opts Options) []Rule {
	all := AllRules()

	if len(opts.EnabledRules) == 0 {
		return all
	}

	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if enabled[r.ID()] {
			filtered = append(filtered, r)
		}
	}

	return filtered
}
