// Package infra declares the hello API stack: a two-AZ VPC, the hello
// function attached to its private subnets, and a REST API exposing
// GET /hello through a non-proxy Lambda integration.
//
// Topology:
//
//	Vpc (10.0.0.0/16)
//	|
//	+-- Public subnets (10.0.0.0/18, 10.0.64.0/18), one NAT gateway each
//	+-- Private subnets (10.0.128.0/18, 10.0.192.0/18)
//	    +-- HelloFunction (provided.al2023, 1024 MB, 300 s)
//	        ^
//	        HelloApi GET /hello (AWS integration, CORS preflight)
package infra

import (
	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

// Logical IDs of the resources other packages look up.
const (
	VpcID                  = "Vpc"
	SecurityGroupID        = "HelloFunctionSecurityGroup"
	ServiceRoleID          = "HelloFunctionServiceRole"
	FunctionID             = "HelloFunction"
	RestAPIID              = "HelloApi"
	RootOptionsMethodID    = "HelloApiOPTIONS"
	HelloResourceID        = "HelloApiHello"
	HelloOptionsMethodID   = "HelloApiHelloOPTIONS"
	HelloGetMethodID       = "HelloApiHelloGET"
	ParameterValidatorID   = "HelloApiParameterValidator"
	InvokePermissionID     = "HelloApiHelloGETPermission"
	DeploymentID           = "HelloApiDeployment"
	CodeBucketParameter    = "CodeBucket"
	CodeKeyParameter       = "CodeKey"
	EndpointOutput         = "HelloApiEndpoint"
	FunctionNameOutput     = "HelloFunctionName"
	DefaultStageName       = "prod"
	DefaultArchitecture    = "x86_64"
	DefaultDescription     = "GET /hello backed by a VPC-attached Lambda function"
	functionRuntime        = "provided.al2023"
	functionHandler        = "bootstrap"
	functionMemorySize     = 1024
	functionTimeoutSeconds = 300
)

// StackProps configures the synthesized stack.
type StackProps struct {
	Description string
	// StageName is the deployment stage; it is part of the stage's logical ID.
	StageName string
	// Architecture is the Lambda architecture, x86_64 or arm64.
	Architecture string
}

// DefaultStackProps returns the props of the stack as deployed by default.
func DefaultStackProps() StackProps {
	return StackProps{
		Description:  DefaultDescription,
		StageName:    DefaultStageName,
		Architecture: DefaultArchitecture,
	}
}

func (p StackProps) withDefaults() StackProps {
	d := DefaultStackProps()
	if p.Description == "" {
		p.Description = d.Description
	}
	if p.StageName == "" {
		p.StageName = d.StageName
	}
	if p.Architecture == "" {
		p.Architecture = d.Architecture
	}
	return p
}

// StageID is the logical ID of the stage resource for a stage name.
func StageID(stageName string) string {
	return DeploymentID + "Stage" + stageName
}

// Declare registers every resource, parameter and output of the stack.
// Nothing is provisioned.
func Declare(props StackProps) *template.Builder {
	props = props.withDefaults()

	b := template.NewBuilder(props.Description)
	b.AddParameter(CodeBucketParameter, hellostack.Parameter{
		Type:        "String",
		Description: "S3 bucket holding the hello function archive",
	})
	b.AddParameter(CodeKeyParameter, hellostack.Parameter{
		Type:        "String",
		Description: "S3 key of the hello function archive",
	})

	net := declareNetwork(b)
	declareCompute(b, props, net)
	declareAPI(b, props)

	return b
}

// Synthesize renders the stack into a CloudFormation template.
func Synthesize(props StackProps) (*hellostack.Template, error) {
	return Declare(props).Build()
}
