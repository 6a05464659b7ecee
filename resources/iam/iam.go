// Package iam contains the AWS::IAM resource types used by the stack.
package iam

// Role is AWS::IAM::Role.
type Role struct {
	AssumeRolePolicyDocument any   `json:"AssumeRolePolicyDocument,omitempty"`
	Description              any   `json:"Description,omitempty"`
	ManagedPolicyArns        []any `json:"ManagedPolicyArns,omitempty"`
	Policies                 []any `json:"Policies,omitempty"`
	RoleName                 any   `json:"RoleName,omitempty"`
	Tags                     []any `json:"Tags,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Role) ResourceType() string { return "AWS::IAM::Role" }

// Role_Policy is an inline policy of a Role.
type Role_Policy struct {
	PolicyDocument any `json:"PolicyDocument,omitempty"`
	PolicyName     any `json:"PolicyName,omitempty"`
}
