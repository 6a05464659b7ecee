package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
)

type fakeLinter struct {
	matches []lint.Match
	err     error
	paths   []string
}

func (f *fakeLinter) LintFile(path string) ([]lint.Match, error) {
	f.paths = append(f.paths, path)
	return f.matches, f.err
}

func TestCfnLintResult_TotalIssues(t *testing.T) {
	tests := []struct {
		name     string
		result   CfnLintResult
		expected int
	}{
		{
			name:     "empty result",
			result:   CfnLintResult{},
			expected: 0,
		},
		{
			name: "mixed issues",
			result: CfnLintResult{
				Errors:        []string{"error1"},
				Warnings:      []string{"warning1", "warning2"},
				Informational: []string{"info1"},
			},
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.TotalIssues())
		})
	}
}

func TestFormatMatch(t *testing.T) {
	tests := []struct {
		name     string
		match    lint.Match
		expected string
	}{
		{
			name: "simple match",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "E1234"},
				Message: "Something is wrong",
			},
			expected: "E1234: Something is wrong",
		},
		{
			name: "match with path",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "W5678"},
				Message: "Warning message",
				Location: lint.MatchLocation{
					Path: []any{"Resources", "HelloFunction", "Properties", 0},
				},
			},
			expected: "W5678: Warning message (at Resources/HelloFunction/Properties/0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMatch(tt.match))
		})
	}
}

func TestValidate_StructuralErrors(t *testing.T) {
	tmpl := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"Fn": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"Role": map[string]any{"Fn::GetAtt": []any{"MissingRole", "Arn"}},
				},
				DependsOn: []string{"Ghost"},
			},
		},
	}

	v := &Validator{SkipLint: true}
	result, err := v.Validate(tmpl)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Resources)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `"MissingRole"`)
	assert.Contains(t, result.Errors[1], `"Ghost"`)
}

func TestValidate_SynthesizedStack(t *testing.T) {
	tmpl, err := infra.Synthesize(infra.DefaultStackProps())
	require.NoError(t, err)

	linter := &fakeLinter{}
	result, err := (&Validator{Linter: linter}).Validate(tmpl)
	require.NoError(t, err)

	assert.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, len(tmpl.Resources), result.Resources)
	require.Len(t, linter.paths, 1)
	_, statErr := os.Stat(linter.paths[0])
	assert.True(t, os.IsNotExist(statErr), "temporary template should be removed")
}

func TestValidate_LintLevels(t *testing.T) {
	linter := &fakeLinter{matches: []lint.Match{
		{Rule: lint.MatchRule{ID: "E3012"}, Level: "Error", Message: "bad type"},
		{Rule: lint.MatchRule{ID: "W2001"}, Level: "Warning", Message: "unused"},
		{Rule: lint.MatchRule{ID: "I3011"}, Level: "Informational", Message: "fyi"},
	}}
	tmpl := &hellostack.Template{Resources: map[string]hellostack.ResourceDef{
		"Bucket": {Type: "AWS::S3::Bucket"},
	}}

	result, err := (&Validator{Linter: linter}).Validate(tmpl)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, []string{"E3012: bad type"}, result.Errors)
	assert.Equal(t, []string{"W2001: unused", "I3011: fyi"}, result.Warnings)
}

func TestValidate_LinterFailure(t *testing.T) {
	linter := &fakeLinter{err: errors.New("boom")}
	tmpl := &hellostack.Template{Resources: map[string]hellostack.ResourceDef{}}

	result, err := (&Validator{Linter: linter}).Validate(tmpl)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"Linter error: boom"}, result.Errors)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`AWSTemplateFormatVersion: '2010-09-09'
Resources:
  Queue:
    Type: AWS::SQS::Queue
    Properties:
      RedrivePolicy:
        deadLetterTargetArn:
          Fn::GetAtt: [Dlq, Arn]
`), 0644))

	result, err := (&Validator{SkipLint: true}).ValidateFile(path)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 1)

	_, err = (&Validator{SkipLint: true}).ValidateFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRunCfnLint_FileNotFound(t *testing.T) {
	result := RunCfnLint("/nonexistent/template.yaml")
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Template file not found")
}

func TestRunCfnLint_ValidTemplate(t *testing.T) {
	tempDir := t.TempDir()
	templatePath := filepath.Join(tempDir, "template.yaml")

	validTemplate := `AWSTemplateFormatVersion: '2010-09-09'
Description: Test template
Resources:
  MyBucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: test-bucket
`
	require.NoError(t, os.WriteFile(templatePath, []byte(validTemplate), 0644))

	result := RunCfnLint(templatePath)
	assert.NotNil(t, result)
}
