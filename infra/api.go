package infra

import (
	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
	. "github.com/olatheander/aws-cdk-lambda-monorepo/intrinsics"
	"github.com/olatheander/aws-cdk-lambda-monorepo/resources/apigateway"
	"github.com/olatheander/aws-cdk-lambda-monorepo/resources/lambda"
)

func declareAPI(b *template.Builder, props StackProps) {
	api := Ref{LogicalName: RestAPIID}

	// ----------------------------------------------------------------------------
	// REST API
	// ----------------------------------------------------------------------------

	b.Add(RestAPIID, apigateway.RestApi{
		Name: "hello-api",
		EndpointConfiguration: &apigateway.RestApi_EndpointConfiguration{
			Types: Any("EDGE"),
		},
	})

	b.Add(HelloResourceID, apigateway.Resource{
		ParentId:  GetAtt{LogicalName: RestAPIID, Attribute: "RootResourceId"},
		PathPart:  "hello",
		RestApiId: api,
	})

	// ----------------------------------------------------------------------------
	// CORS preflight on / and /hello
	// ----------------------------------------------------------------------------

	b.Add(RootOptionsMethodID, corsPreflight(GetAtt{LogicalName: RestAPIID, Attribute: "RootResourceId"}))
	b.Add(HelloOptionsMethodID, corsPreflight(Ref{LogicalName: HelloResourceID}))

	// ----------------------------------------------------------------------------
	// GET /hello
	// ----------------------------------------------------------------------------

	b.Add(ParameterValidatorID, apigateway.RequestValidator{
		Name:                      "parameter-validator",
		RestApiId:                 api,
		ValidateRequestParameters: true,
	})

	b.Add(HelloGetMethodID, apigateway.Method{
		AuthorizationType: "NONE",
		HttpMethod:        "GET",
		Integration: &apigateway.Method_Integration{
			IntegrationHttpMethod: "POST",
			IntegrationResponses: Any(
				apigateway.Method_IntegrationResponse{
					StatusCode:         "200",
					ResponseParameters: helloResponseParameters,
					ResponseTemplates:  map[string]any{jsonContentType: HelloResponseTemplate},
				},
				apigateway.Method_IntegrationResponse{
					SelectionPattern:   ErrorSelectionPattern,
					StatusCode:         "500",
					ResponseParameters: helloResponseParameters,
				},
			),
			PassthroughBehavior: passthroughWhenNoTemplate,
			RequestParameters: map[string]any{
				nameIntegrationParameter: nameQueryParameter,
			},
			RequestTemplates: map[string]any{jsonContentType: HelloRequestTemplate},
			Type_:            "AWS",
			Uri:              LambdaInvocationURI(GetAtt{LogicalName: FunctionID, Attribute: "Arn"}),
		},
		MethodResponses: Any(
			apigateway.Method_MethodResponse{
				StatusCode:         "200",
				ResponseParameters: map[string]any{allowOriginHeader: true},
			},
			apigateway.Method_MethodResponse{
				StatusCode:         "500",
				ResponseParameters: map[string]any{allowOriginHeader: true},
			},
		),
		RequestParameters:  map[string]any{nameQueryParameter: true},
		RequestValidatorId: Ref{LogicalName: ParameterValidatorID},
		ResourceId:         Ref{LogicalName: HelloResourceID},
		RestApiId:          api,
	})

	b.Add(InvokePermissionID, lambda.Permission{
		Action:       "lambda:InvokeFunction",
		FunctionName: GetAtt{LogicalName: FunctionID, Attribute: "Arn"},
		Principal:    "apigateway.amazonaws.com",
		SourceArn:    ExecuteAPIArn(api, "*", "GET", "/hello"),
	})

	// ----------------------------------------------------------------------------
	// Deployment and stage
	// ----------------------------------------------------------------------------

	// A deployment snapshots the methods that exist when it is created.
	b.Add(DeploymentID, apigateway.Deployment{
		Description: "hello api deployment",
		RestApiId:   api,
	}, HelloGetMethodID, HelloOptionsMethodID, RootOptionsMethodID)

	stage := StageID(props.StageName)
	b.Add(stage, apigateway.Stage{
		DeploymentId: Ref{LogicalName: DeploymentID},
		RestApiId:    api,
		StageName:    props.StageName,
	})

	// ----------------------------------------------------------------------------
	// Outputs
	// ----------------------------------------------------------------------------

	b.AddOutput(EndpointOutput, hellostack.Output{
		Description: "Invoke URL of the hello API stage",
		Value: Join{
			Delimiter: "",
			Values: []any{
				"https://",
				api,
				".execute-api.",
				AWS_REGION,
				".",
				AWS_URL_SUFFIX,
				"/",
				Ref{LogicalName: stage},
				"/",
			},
		},
	})
	b.AddOutput(FunctionNameOutput, hellostack.Output{
		Description: "Name of the hello function",
		Value:       Ref{LogicalName: FunctionID},
	})
}

// corsPreflight is an OPTIONS method answered by a MOCK integration.
func corsPreflight(resourceID any) apigateway.Method {
	return apigateway.Method{
		AuthorizationType: "NONE",
		HttpMethod:        "OPTIONS",
		Integration: &apigateway.Method_Integration{
			IntegrationResponses: Any(apigateway.Method_IntegrationResponse{
				ResponseParameters: corsResponseParameters,
				StatusCode:         CorsStatusCode,
			}),
			RequestTemplates: map[string]any{jsonContentType: "{ statusCode: 200 }"},
			Type_:            "MOCK",
		},
		MethodResponses: Any(apigateway.Method_MethodResponse{
			ResponseParameters: map[string]any{
				allowHeadersHeader: true,
				allowOriginHeader:  true,
				allowMethodsHeader: true,
			},
			StatusCode: CorsStatusCode,
		}),
		ResourceId: resourceID,
		RestApiId:  Ref{LogicalName: RestAPIID},
	}
}
