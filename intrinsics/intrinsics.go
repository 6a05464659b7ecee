// Package intrinsics provides CloudFormation intrinsic functions.
//
// This package re-exports the core intrinsic types from cloudformation-schema-go
// and adds the IAM policy and API Gateway helpers the stack needs.
//
// Core intrinsic functions:
//
//	Ref{"HelloFunction"} → {"Ref": "HelloFunction"}
//	Sub{"${AWS::Region}-hello"} → {"Fn::Sub": "${AWS::Region}-hello"}
//	Join{"", []any{"arn:", AWS_PARTITION}} → {"Fn::Join": ["", ["arn:", {"Ref": "AWS::Partition"}]]}
//
// Pseudo-parameters:
//
//	AWS_REGION, AWS_ACCOUNT_ID, AWS_STACK_NAME, etc.
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// SubWithMap is Fn::Sub with a variable map.
	SubWithMap = intrinsics.SubWithMap

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join

	// Select represents a CloudFormation Fn::Select intrinsic function.
	Select = intrinsics.Select

	// GetAZs represents a CloudFormation Fn::GetAZs intrinsic function.
	GetAZs = intrinsics.GetAZs

	// Cidr represents a CloudFormation Fn::Cidr intrinsic function.
	Cidr = intrinsics.Cidr

	// Tag represents a CloudFormation resource tag.
	Tag = intrinsics.Tag
)

// Param creates a Ref for a CloudFormation parameter.
var Param = intrinsics.Param

// AZ selects the n-th availability zone of the stack's region.
func AZ(n int) Select {
	return Select{Index: n, List: GetAZs{}}
}

// NameTag tags a resource with "<stack name>/<path>", the way the
// console groups resources of one stack.
func NameTag(path string) Tag {
	return Tag{Key: "Name", Value: Sub{String: "${AWS::StackName}/" + path}}
}
