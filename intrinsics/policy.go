// Package intrinsics provides CloudFormation intrinsic functions.
// This file contains IAM policy document types and helpers.
package intrinsics

import (
	"encoding/json"
)

// Json is a shorthand for map[string]any.
type Json = map[string]any

// Any creates a []any slice from the given items.
// Use for fields typed as []any that accept mixed types or intrinsics.
//
//	SecurityGroupIds: Any(GetAtt{LogicalName: "HelloFunctionSecurityGroup", Attribute: "GroupId"}),
func Any(items ...any) []any {
	return items
}

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string `json:"Version,omitempty"`
	Statement []any  `json:"Statement"`
}

// NewPolicyDocument creates a PolicyDocument with the default version.
func NewPolicyDocument(statements ...any) PolicyDocument {
	return PolicyDocument{Version: "2012-10-17", Statement: statements}
}

// PolicyStatement represents an IAM policy statement.
//
//	PolicyStatement{
//	    Effect:    "Allow",
//	    Principal: ServicePrincipal{"lambda.amazonaws.com"},
//	    Action:    "sts:AssumeRole",
//	}
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal any    `json:"Principal,omitempty"`
	Action    any    `json:"Action,omitempty"`
	Resource  any    `json:"Resource,omitempty"`
	Condition Json   `json:"Condition,omitempty"`
}

// ServicePrincipal represents a service principal (e.g., lambda.amazonaws.com).
// Serializes to {"Service": ...} format.
type ServicePrincipal []any

// MarshalJSON serializes to {"Service": ...} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"Service": p[0]})
	}
	return json.Marshal(map[string]any{"Service": []any(p)})
}

// ManagedPolicy returns the partition-aware ARN of an AWS managed policy,
// e.g. ManagedPolicy("service-role/AWSLambdaBasicExecutionRole").
func ManagedPolicy(name string) Join {
	return Join{
		Delimiter: "",
		Values: []any{
			"arn:",
			AWS_PARTITION,
			":iam::aws:policy/" + name,
		},
	}
}

// LambdaInvocationURI is the API Gateway integration URI that invokes
// the function whose ARN is given.
func LambdaInvocationURI(functionArn any) Join {
	return Join{
		Delimiter: "",
		Values: []any{
			"arn:",
			AWS_PARTITION,
			":apigateway:",
			AWS_REGION,
			":lambda:path/2015-03-31/functions/",
			functionArn,
			"/invocations",
		},
	}
}

// ExecuteAPIArn scopes a permission to an API, a stage, a method and a
// path; "*" matches any.
func ExecuteAPIArn(restAPI any, stage, method, path string) Join {
	return Join{
		Delimiter: "",
		Values: []any{
			"arn:",
			AWS_PARTITION,
			":execute-api:",
			AWS_REGION,
			":",
			AWS_ACCOUNT_ID,
			":",
			restAPI,
			"/" + stage + "/" + method + path,
		},
	}
}
