package apigateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
)

func TestResourceTypes(t *testing.T) {
	tests := []struct {
		name     string
		resource hellostack.Resource
		expected string
	}{
		{"RestApi", RestApi{}, "AWS::ApiGateway::RestApi"},
		{"Resource", Resource{}, "AWS::ApiGateway::Resource"},
		{"Method", Method{}, "AWS::ApiGateway::Method"},
		{"RequestValidator", RequestValidator{}, "AWS::ApiGateway::RequestValidator"},
		{"Deployment", Deployment{}, "AWS::ApiGateway::Deployment"},
		{"Stage", Stage{}, "AWS::ApiGateway::Stage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.resource.ResourceType())
		})
	}
}

func TestMethodSerialization(t *testing.T) {
	method := Method{
		HttpMethod:        "GET",
		AuthorizationType: "NONE",
		RequestParameters: map[string]any{"method.request.querystring.name": true},
		Integration: &Method_Integration{
			Type_:               "AWS",
			PassthroughBehavior: "WHEN_NO_TEMPLATES",
			IntegrationResponses: []any{
				Method_IntegrationResponse{StatusCode: "200"},
				Method_IntegrationResponse{StatusCode: "500", SelectionPattern: "(\n|.)+"},
			},
		},
	}

	data, err := json.Marshal(method)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	integration := parsed["Integration"].(map[string]any)
	assert.Equal(t, "AWS", integration["Type"])
	assert.NotContains(t, integration, "Type_")

	responses := integration["IntegrationResponses"].([]any)
	require.Len(t, responses, 2)
	assert.NotContains(t, responses[0].(map[string]any), "SelectionPattern")
	assert.Equal(t, "(\n|.)+", responses[1].(map[string]any)["SelectionPattern"])

	params := parsed["RequestParameters"].(map[string]any)
	assert.Equal(t, true, params["method.request.querystring.name"])
}
