package infra

import (
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
	. "github.com/olatheander/aws-cdk-lambda-monorepo/intrinsics"
	"github.com/olatheander/aws-cdk-lambda-monorepo/resources/ec2"
	"github.com/olatheander/aws-cdk-lambda-monorepo/resources/iam"
	"github.com/olatheander/aws-cdk-lambda-monorepo/resources/lambda"
)

// LambdaAssumeRoleStatement allows the Lambda service to assume the execution role.
var LambdaAssumeRoleStatement = PolicyStatement{
	Effect:    "Allow",
	Principal: ServicePrincipal{"lambda.amazonaws.com"},
	Action:    "sts:AssumeRole",
}

// ExecutionPolicies are the managed policies of the function's role:
// CloudWatch Logs plus the ENI permissions VPC attachment needs.
var ExecutionPolicies = []string{
	"service-role/AWSLambdaBasicExecutionRole",
	"service-role/AWSLambdaVPCAccessExecutionRole",
}

func declareCompute(b *template.Builder, props StackProps, net network) {
	// ----------------------------------------------------------------------------
	// Security group
	// ----------------------------------------------------------------------------

	b.Add(SecurityGroupID, ec2.SecurityGroup{
		GroupDescription: "Automatic security group for Lambda Function " + FunctionID,
		SecurityGroupEgress: Any(ec2.SecurityGroup_Egress{
			CidrIp:      "0.0.0.0/0",
			Description: "Allow all outbound traffic by default",
			IpProtocol:  "-1",
		}),
		VpcId: Ref{LogicalName: VpcID},
	})

	// ----------------------------------------------------------------------------
	// Execution role
	// ----------------------------------------------------------------------------

	var managed []any
	for _, name := range ExecutionPolicies {
		managed = append(managed, ManagedPolicy(name))
	}
	b.Add(ServiceRoleID, iam.Role{
		AssumeRolePolicyDocument: NewPolicyDocument(LambdaAssumeRoleStatement),
		ManagedPolicyArns:        managed,
	})

	// ----------------------------------------------------------------------------
	// Function
	// ----------------------------------------------------------------------------

	subnets := make([]any, 0, len(net.privateSubnets))
	for _, id := range net.privateSubnets {
		subnets = append(subnets, Ref{LogicalName: id})
	}

	// The function needs NAT egress before it can initialize.
	dependsOn := append([]string{}, net.defaultRoutes...)

	b.Add(FunctionID, lambda.Function{
		Architectures: Any(props.Architecture),
		Code: &lambda.Function_Code{
			S3Bucket: Param(CodeBucketParameter),
			S3Key:    Param(CodeKeyParameter),
		},
		// An explicit empty map: the function reads no configuration.
		Environment: &lambda.Function_Environment{Variables: map[string]any{}},
		Handler:     functionHandler,
		MemorySize:  functionMemorySize,
		Role:        GetAtt{LogicalName: ServiceRoleID, Attribute: "Arn"},
		Runtime:     functionRuntime,
		Timeout:     functionTimeoutSeconds,
		VpcConfig: &lambda.Function_VpcConfig{
			SecurityGroupIds: Any(GetAtt{LogicalName: SecurityGroupID, Attribute: "GroupId"}),
			SubnetIds:        subnets,
		},
	}, dependsOn...)
}
