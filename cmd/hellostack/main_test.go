package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/config"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/deploy"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/linter"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// inTempDir runs the test in an empty directory so no config file or
// dotenv file is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	globals = globalOptions{}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"build", "list", "graph", "diff", "validate", "lint", "serve", "watch", "package", "deploy", "logs", "version"}
	for _, name := range want {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("missing %s command", name)
		}
	}
	for _, flag := range []string{"config", "env-file", "no-color"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestBuildCmd_WritesTemplate(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "template.yaml")

	if _, err := execute(t, "build", "-f", "yaml", "-o", path); err != nil {
		t.Fatalf("build: %v", err)
	}

	tmpl, err := template.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := tmpl.Resources[infra.FunctionID]; !ok {
		t.Errorf("expected %s in template", infra.FunctionID)
	}
	if _, ok := tmpl.Resources[infra.StageID(infra.DefaultStageName)]; !ok {
		t.Error("expected default stage")
	}
}

func TestBuildCmd_StageFromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv(config.EnvPrefix+"_STAGE_NAME", "dev")

	out, err := execute(t, "build")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, infra.StageID("dev")) {
		t.Error("expected dev stage in output")
	}
}

func TestBuildCmd_UnknownFormat(t *testing.T) {
	inTempDir(t)
	if _, err := execute(t, "build", "-f", "toml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestBuildCmd_InvalidConfig(t *testing.T) {
	inTempDir(t)
	t.Setenv(config.EnvPrefix+"_ARCHITECTURE", "sparc")
	if _, err := execute(t, "build"); err == nil {
		t.Error("expected invalid config to fail the build")
	}
}

func TestListCmd_JSON(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "list", "-f", "json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var result hellostack.ListResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	found := false
	for i, r := range result.Resources {
		if i > 0 && result.Resources[i-1].Name > r.Name {
			t.Error("resources should be sorted by name")
		}
		if r.Name == infra.RestAPIID && r.Type == "AWS::ApiGateway::RestApi" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in list", infra.RestAPIID)
	}
}

func TestGraphCmd_Mermaid(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "graph", "-f", "mermaid")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if !strings.Contains(out, infra.FunctionID) {
		t.Error("expected function node")
	}

	if _, err := execute(t, "graph", "-f", "svg"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNewDiffCmd(t *testing.T) {
	cmd := newDiffCmd()

	if cmd.Use != "diff <old> [new]" {
		t.Errorf("Use = %q, want 'diff <old> [new]'", cmd.Use)
	}
	if cmd.Flags().Lookup("format") == nil {
		t.Error("missing --format flag")
	}
	if cmd.Flags().Lookup("ignore-order") == nil {
		t.Error("missing --ignore-order flag")
	}
}

func TestDiffCmd_AgainstSynthesized(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "deployed.json")
	if _, err := execute(t, "build", "-o", path); err != nil {
		t.Fatalf("build: %v", err)
	}

	out, err := execute(t, "diff", path)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "No differences") {
		t.Errorf("expected no differences, got:\n%s", out)
	}

	t.Setenv(config.EnvPrefix+"_STAGE_NAME", "dev")
	out, err = execute(t, "diff", path, "-f", "json")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	var result hellostack.DiffResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if result.Summary.Total == 0 {
		t.Error("expected stage rename to show up in the diff")
	}
}

func TestValidateCmd_SkipLint(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "validate", "--skip-lint")
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Validation passed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestOutputValidateResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	err := outputValidateResult(&buf, hellostack.ValidateResult{
		Errors:   []string{`Fn: unresolved reference to "Role"`},
		Warnings: []string{"W1: careful"},
	}, "text")
	if !errors.Is(err, errValidationFailed) {
		t.Errorf("expected errValidationFailed, got %v", err)
	}
	for _, want := range []string{"Validation FAILED", "ERROR: Fn:", "WARNING: W1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, buf.String())
		}
	}
}

func TestNewServeGateway_Local(t *testing.T) {
	inTempDir(t)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	gw, err := newServeGateway(context.Background(), cfg, logger, serveOptions{})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/hello?name=Ann", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Kalle"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func TestNewServeGateway_TemplateFile(t *testing.T) {
	dir := inTempDir(t)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	path := filepath.Join(dir, "missing.json")
	if _, err := newServeGateway(context.Background(), cfg, logrus.New(), serveOptions{templateFile: path}); err == nil {
		t.Error("expected error for missing template")
	}
}

type fakeCFN struct {
	stacks []cfntypes.Stack
}

func (f *fakeCFN) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	return &cloudformation.DescribeStacksOutput{Stacks: f.stacks}, nil
}

func (f *fakeCFN) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCFN) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	return nil, errors.New("not implemented")
}

func TestStackFunctionName(t *testing.T) {
	d := &deploy.Deployer{CFN: &fakeCFN{stacks: []cfntypes.Stack{{
		StackName: aws.String("HelloStack"),
		Outputs: []cfntypes.Output{
			{OutputKey: aws.String(infra.FunctionNameOutput), OutputValue: aws.String("HelloStack-HelloFunction-abc")},
		},
	}}}}

	name, err := stackFunctionName(context.Background(), d, "HelloStack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "HelloStack-HelloFunction-abc" {
		t.Errorf("name = %q", name)
	}

	d.CFN = &fakeCFN{stacks: []cfntypes.Stack{{StackName: aws.String("HelloStack")}}}
	if _, err := stackFunctionName(context.Background(), d, "HelloStack"); err == nil {
		t.Error("expected error when the output is missing")
	}

	d.CFN = &fakeCFN{}
	if _, err := stackFunctionName(context.Background(), d, "HelloStack"); err == nil {
		t.Error("expected error when the stack is missing")
	}
}

func TestPrintDeployResult(t *testing.T) {
	var buf bytes.Buffer
	printDeployResult(&buf, "HelloStack", &deploy.Result{
		Created:  true,
		Status:   "CREATE_COMPLETE",
		Uploaded: true,
		CodeKey:  "hello/abc.zip",
		Outputs: map[string]string{
			infra.FunctionNameOutput: "fn",
			infra.EndpointOutput:     "https://example.com/prod/",
		},
	})

	out := buf.String()
	for _, want := range []string{
		"Stack HelloStack created (CREATE_COMPLETE)",
		"uploaded hello/abc.zip",
		infra.EndpointOutput + " = https://example.com/prod/",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Index(out, infra.EndpointOutput) > strings.Index(out, infra.FunctionNameOutput) {
		t.Error("outputs should be sorted")
	}

	buf.Reset()
	printDeployResult(&buf, "HelloStack", &deploy.Result{NoChanges: true, Status: "UPDATE_COMPLETE", CodeKey: "hello/abc.zip"})
	if !strings.Contains(buf.String(), "is up to date") || !strings.Contains(buf.String(), "reused") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestPrintLogEvents(t *testing.T) {
	var buf bytes.Buffer
	printLogEvents(&buf, nil)
	if !strings.Contains(buf.String(), "No log events") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	printLogEvents(&buf, []deploy.LogEvent{
		{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Message: "START RequestId: 1\n"},
	})
	if buf.String() != "2024-05-01T12:00:00Z START RequestId: 1\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestRunLint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.go")
	if err := os.WriteFile(path, []byte("package x\n\nvar r = map[string]any{\"Ref\": \"Vpc\"}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err := runLint(&buf, []string{dir}, "text", linter.Options{})
	if !errors.Is(err, errLintIssues) {
		t.Fatalf("expected errLintIssues, got %v", err)
	}
	if !strings.Contains(buf.String(), "[HS002]") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	if err := runLint(&buf, []string{dir}, "text", linter.Options{EnabledRules: []string{"HS001"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No issues found.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestRunLint_StackDefinition(t *testing.T) {
	var buf bytes.Buffer
	if err := runLint(&buf, []string{filepath.Join("..", "..", "infra")}, "json", linter.Options{}); err != nil {
		t.Fatalf("stack definition should lint clean: %v\n%s", err, buf.String())
	}
}
