package differ

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

func TestCompare_IdenticalTemplates(t *testing.T) {
	tmpl := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"MyBucket": {
				Type:       "AWS::S3::Bucket",
				Properties: map[string]any{"BucketName": "test-bucket"},
			},
		},
	}

	result, err := Compare(tmpl, tmpl, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected no differences, got %+v", result.Summary)
	}
}

func TestCompare_AddedAndRemoved(t *testing.T) {
	t1 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"Old":  {Type: "AWS::SQS::Queue"},
			"Same": {Type: "AWS::S3::Bucket"},
		},
	}
	t2 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"Same": {Type: "AWS::S3::Bucket"},
			"New":  {Type: "AWS::SNS::Topic"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Summary.Added != 1 || result.Diff.Added[0].Resource != "New" {
		t.Errorf("expected New added, got %+v", result.Diff.Added)
	}
	if result.Summary.Removed != 1 || result.Diff.Removed[0].Resource != "Old" {
		t.Errorf("expected Old removed, got %+v", result.Diff.Removed)
	}
	if result.Summary.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Summary.Total)
	}
}

func TestCompare_ModifiedProperties(t *testing.T) {
	t1 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"Fn": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"MemorySize": 128,
					"Code":       map[string]any{"S3Key": "a.zip"},
					"Layers":     []any{"x"},
				},
			},
		},
	}
	t2 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"Fn": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"MemorySize": 256,
					"Code":       map[string]any{"S3Key": "b.zip"},
					"Timeout":    10,
					"Layers":     []any{"x"},
				},
			},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Modified != 1 {
		t.Fatalf("expected 1 modified, got %d", result.Summary.Modified)
	}

	changes := strings.Join(result.Diff.Modified[0].Changes, "\n")
	for _, want := range []string{"MemorySize modified", "Code.S3Key modified", "Timeout added"} {
		if !strings.Contains(changes, want) {
			t.Errorf("expected %q in changes:\n%s", want, changes)
		}
	}
	if strings.Contains(changes, "Layers") {
		t.Errorf("unchanged property reported:\n%s", changes)
	}
}

func TestCompare_TypeAndDependsOn(t *testing.T) {
	t1 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"R": {Type: "AWS::SQS::Queue", DependsOn: []string{"A", "B"}},
		},
	}
	t2 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"R": {Type: "AWS::SNS::Topic", DependsOn: []string{"B", "A"}},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changes := result.Diff.Modified[0].Changes
	if changes[0] != "Type changed: AWS::SQS::Queue → AWS::SNS::Topic" {
		t.Errorf("unexpected first change %q", changes[0])
	}
	if changes[len(changes)-1] != "DependsOn changed" {
		t.Errorf("expected DependsOn change, got %v", changes)
	}

	result, err = Compare(t1, t2, Options{IgnoreOrder: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range result.Diff.Modified[0].Changes {
		if c == "DependsOn changed" {
			t.Error("DependsOn order should be ignored")
		}
	}
}

func TestCompare_IgnoreOrder(t *testing.T) {
	t1 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"SG": {
				Type:       "AWS::EC2::SecurityGroup",
				Properties: map[string]any{"Tags": []any{"a", "b"}},
			},
		},
	}
	t2 := &hellostack.Template{
		Resources: map[string]hellostack.ResourceDef{
			"SG": {
				Type:       "AWS::EC2::SecurityGroup",
				Properties: map[string]any{"Tags": []any{"b", "a"}},
			},
		},
	}

	ordered, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ordered.Summary.Modified != 1 {
		t.Error("expected reordered list to be a modification")
	}

	unordered, err := Compare(t1, t2, Options{IgnoreOrder: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unordered.Empty() {
		t.Errorf("expected no differences with IgnoreOrder, got %+v", unordered.Diff.Modified)
	}
}

func TestCompareFiles_SynthesizedStages(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, props infra.StackProps) string {
		tmpl, err := infra.Synthesize(props)
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		data, err := template.ToJSON(tmpl)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	props := infra.DefaultStackProps()
	prod := write("prod.json", props)
	props.StageName = "dev"
	dev := write("dev.json", props)

	same, err := CompareFiles(prod, prod, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !same.Empty() {
		t.Errorf("expected identical files to match, got %+v", same.Summary)
	}

	result, err := CompareFiles(prod, dev, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.Total == 0 {
		t.Error("expected stage change to produce differences")
	}
}

func TestCompare_SynthesizedAgainstParsed(t *testing.T) {
	synth, err := infra.Synthesize(infra.DefaultStackProps())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	encoders := map[string]func(*hellostack.Template) ([]byte, error){
		"json": template.ToJSON,
		"yaml": template.ToYAML,
	}
	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			data, err := encode(synth)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			parsed, err := template.Parse(data)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			result, err := Compare(parsed, synth, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.Empty() {
				t.Errorf("expected no differences, got %+v", result.Diff)
			}
		})
	}
}

func TestCompare_IntAgainstFloat(t *testing.T) {
	t1 := &hellostack.Template{Resources: map[string]hellostack.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function", Properties: map[string]any{"Timeout": int64(300)}},
	}}
	t2 := &hellostack.Template{Resources: map[string]hellostack.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function", Properties: map[string]any{"Timeout": float64(300)}},
	}}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected equal numbers to match, got %+v", result.Diff.Modified)
	}
}

func TestCompareFiles_Missing(t *testing.T) {
	if _, err := CompareFiles("does-not-exist.json", "also-missing.json", Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRender(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	Render(&buf, &Result{})
	if strings.TrimSpace(buf.String()) != "No differences" {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	Render(&buf, &Result{
		Diff: hellostack.TemplateDiff{
			Added:    []hellostack.DiffEntry{{Resource: "New", Type: "AWS::SNS::Topic"}},
			Modified: []hellostack.DiffEntry{{Resource: "Fn", Type: "AWS::Lambda::Function", Changes: []string{"Timeout added"}}},
		},
		Summary: hellostack.DiffSummary{Added: 1, Modified: 1, Total: 2},
	})
	out := buf.String()
	for _, want := range []string{"+ New (AWS::SNS::Topic)", "~ Fn (AWS::Lambda::Function)", "    Timeout added", "1 added, 0 removed, 1 modified"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
