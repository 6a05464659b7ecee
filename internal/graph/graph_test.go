package graph

import (
	"strings"
	"testing"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
)

func simpleTemplate() *hellostack.Template {
	return &hellostack.Template{
		Parameters: map[string]hellostack.Parameter{
			"CodeKey": {Type: "String"},
		},
		Resources: map[string]hellostack.ResourceDef{
			"Role": {Type: "AWS::IAM::Role"},
			"Fn": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"Role": map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
					"Code": map[string]any{"S3Key": map[string]any{"Ref": "CodeKey"}},
				},
				DependsOn: []string{"Route"},
			},
			"Route": {Type: "AWS::EC2::Route"},
			"Vpc":   {Type: "AWS::EC2::VPC"},
		},
	}
}

func TestGenerator_Generate_SimpleGraph(t *testing.T) {
	gen := &Generator{}
	var sb strings.Builder
	if err := gen.Generate(simpleTemplate(), &sb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := sb.String()

	if !strings.Contains(output, "digraph") {
		t.Error("expected digraph declaration")
	}
	for _, name := range []string{"Role", "Fn", "Route", "Vpc"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected %s node", name)
		}
	}
	if !strings.Contains(output, `AWS::Lambda::Function`) {
		t.Error("expected CloudFormation type in label")
	}
	if strings.Contains(output, "CodeKey") {
		t.Error("parameters should be omitted by default")
	}
}

func TestGenerator_Generate_EdgeStyles(t *testing.T) {
	output, err := (&Generator{}).GenerateString(simpleTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, `color="blue"`) {
		t.Error("expected GetAtt edge to be blue")
	}
	if !strings.Contains(output, `style="dashed"`) {
		t.Error("expected DependsOn edge to be dashed")
	}
}

func TestGenerator_Generate_WithParameters(t *testing.T) {
	gen := &Generator{IncludeParameters: true}
	output, err := gen.GenerateString(simpleTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "CodeKey") {
		t.Error("expected parameter node")
	}
	if !strings.Contains(output, "ellipse") {
		t.Error("expected parameter to be drawn as ellipse")
	}
	if !strings.Contains(output, `style="dotted"`) {
		t.Error("expected dotted parameter edge")
	}
}

func TestGenerator_Generate_Clustered(t *testing.T) {
	gen := &Generator{ClusterByService: true}
	output, err := gen.GenerateString(simpleTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "cluster_EC2") {
		t.Error("expected EC2 cluster")
	}
	if strings.Contains(output, "cluster_IAM") {
		t.Error("single-resource services should not be clustered")
	}
}

func TestGenerator_Generate_Mermaid(t *testing.T) {
	gen := &Generator{Format: FormatMermaid}
	output, err := gen.GenerateString(simpleTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "flowchart") && !strings.Contains(output, "graph") {
		t.Errorf("expected mermaid header, got: %s", output)
	}
	if strings.Contains(output, "digraph") {
		t.Error("mermaid output should not contain digraph")
	}
}

func TestGenerator_Generate_Deterministic(t *testing.T) {
	tmpl, err := infra.Synthesize(infra.DefaultStackProps())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	gen := &Generator{ClusterByService: true}
	first, err := gen.GenerateString(tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := gen.GenerateString(tmpl)
	if first != second {
		t.Error("expected identical output for identical templates")
	}
	if !strings.Contains(first, infra.FunctionID) {
		t.Error("expected function node")
	}
}

func TestExtractService(t *testing.T) {
	tests := map[string]string{
		"AWS::EC2::VPC":            "EC2",
		"AWS::ApiGateway::RestApi": "ApiGateway",
		"Custom::Thing":            "Other",
	}
	for in, want := range tests {
		if got := extractService(in); got != want {
			t.Errorf("extractService(%q) = %q, want %q", in, got, want)
		}
	}
}
