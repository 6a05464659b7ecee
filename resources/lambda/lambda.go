// Package lambda contains the AWS::Lambda resource types used by the stack.
package lambda

// Function is AWS::Lambda::Function.
type Function struct {
	Architectures []any                 `json:"Architectures,omitempty"`
	Code          *Function_Code        `json:"Code,omitempty"`
	Description   any                   `json:"Description,omitempty"`
	Environment   *Function_Environment `json:"Environment,omitempty"`
	FunctionName  any                   `json:"FunctionName,omitempty"`
	Handler       any                   `json:"Handler,omitempty"`
	MemorySize    int                   `json:"MemorySize,omitempty"`
	Role          any                   `json:"Role,omitempty"`
	Runtime       any                   `json:"Runtime,omitempty"`
	Timeout       int                   `json:"Timeout,omitempty"`
	VpcConfig     *Function_VpcConfig   `json:"VpcConfig,omitempty"`
	Tags          []any                 `json:"Tags,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Function) ResourceType() string { return "AWS::Lambda::Function" }

// Function_Code locates the deployment package.
type Function_Code struct {
	S3Bucket any    `json:"S3Bucket,omitempty"`
	S3Key    any    `json:"S3Key,omitempty"`
	ZipFile  string `json:"ZipFile,omitempty"`
}

// Function_Environment holds the function's environment variables.
// Variables is always rendered, so an empty map stays an explicit
// empty set in the template.
type Function_Environment struct {
	Variables map[string]any `json:"Variables"`
}

// Function_VpcConfig attaches the function to subnets of a VPC.
type Function_VpcConfig struct {
	SecurityGroupIds []any `json:"SecurityGroupIds,omitempty"`
	SubnetIds        []any `json:"SubnetIds,omitempty"`
}

// Permission is AWS::Lambda::Permission.
type Permission struct {
	Action       any `json:"Action,omitempty"`
	FunctionName any `json:"FunctionName,omitempty"`
	Principal    any `json:"Principal,omitempty"`
	SourceArn    any `json:"SourceArn,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Permission) ResourceType() string { return "AWS::Lambda::Permission" }
