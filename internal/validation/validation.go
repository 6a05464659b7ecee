// Package validation checks synthesized templates before they are deployed
// or served.
//
// Two passes run over a template:
//   - structural: every Ref, Fn::GetAtt and Fn::Sub target and every
//     DependsOn entry must resolve (internal/template.CheckReferences)
//   - cfn-lint: the CloudFormation rules of cfn-lint-go (library dependency)
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// Linter lints a template file.
type Linter interface {
	LintFile(path string) ([]lint.Match, error)
}

// Validator runs both validation passes.
type Validator struct {
	// Linter defaults to cfn-lint-go with default options.
	Linter Linter
	// SkipLint runs the structural pass only.
	SkipLint bool
}

// Validate validates a template held in memory. The template is written
// to a temporary file for cfn-lint.
func (v *Validator) Validate(t *hellostack.Template) (*hellostack.ValidateResult, error) {
	result := &hellostack.ValidateResult{
		Resources: len(t.Resources),
	}
	result.Errors = append(result.Errors, structuralErrors(t)...)

	if !v.SkipLint {
		dir, err := os.MkdirTemp("", "hellostack-validate-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		data, err := template.ToYAML(t)
		if err != nil {
			return nil, fmt.Errorf("rendering template: %w", err)
		}
		path := filepath.Join(dir, "template.yaml")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing template: %w", err)
		}

		lintResult := v.runCfnLint(path)
		result.Errors = append(result.Errors, lintResult.Errors...)
		result.Warnings = append(result.Warnings, lintResult.Warnings...)
		result.Warnings = append(result.Warnings, lintResult.Informational...)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// ValidateFile loads a JSON or YAML template and validates it.
func (v *Validator) ValidateFile(path string) (*hellostack.ValidateResult, error) {
	t, err := template.Load(path)
	if err != nil {
		return nil, err
	}
	return v.Validate(t)
}

func structuralErrors(t *hellostack.Template) []string {
	err := template.CheckReferences(t)
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) *CfnLintResult {
	return (&Validator{}).runCfnLint(templatePath)
}

func (v *Validator) runCfnLint(templatePath string) *CfnLintResult {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}
	}

	linter := v.Linter
	if linter == nil {
		linter = lint.New(lint.Options{})
	}
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable
	result.Passed = len(result.Errors) == 0

	return result
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}
