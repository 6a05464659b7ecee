// Package apigateway contains the AWS::ApiGateway (REST API) resource types.
package apigateway

// RestApi is AWS::ApiGateway::RestApi.
type RestApi struct {
	Description           any                            `json:"Description,omitempty"`
	EndpointConfiguration *RestApi_EndpointConfiguration `json:"EndpointConfiguration,omitempty"`
	Name                  any                            `json:"Name,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (RestApi) ResourceType() string { return "AWS::ApiGateway::RestApi" }

// RestApi_EndpointConfiguration selects EDGE, REGIONAL or PRIVATE.
type RestApi_EndpointConfiguration struct {
	Types []any `json:"Types,omitempty"`
}

// Resource is AWS::ApiGateway::Resource, one path segment.
type Resource struct {
	ParentId  any `json:"ParentId,omitempty"`
	PathPart  any `json:"PathPart,omitempty"`
	RestApiId any `json:"RestApiId,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Resource) ResourceType() string { return "AWS::ApiGateway::Resource" }

// Method is AWS::ApiGateway::Method.
type Method struct {
	ApiKeyRequired     bool                `json:"ApiKeyRequired,omitempty"`
	AuthorizationType  any                 `json:"AuthorizationType,omitempty"`
	HttpMethod         any                 `json:"HttpMethod,omitempty"`
	Integration        *Method_Integration `json:"Integration,omitempty"`
	MethodResponses    []any               `json:"MethodResponses,omitempty"`
	RequestParameters  map[string]any      `json:"RequestParameters,omitempty"`
	RequestValidatorId any                 `json:"RequestValidatorId,omitempty"`
	ResourceId         any                 `json:"ResourceId,omitempty"`
	RestApiId          any                 `json:"RestApiId,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Method) ResourceType() string { return "AWS::ApiGateway::Method" }

// Method_Integration describes the backend a Method calls.
type Method_Integration struct {
	IntegrationHttpMethod any            `json:"IntegrationHttpMethod,omitempty"`
	IntegrationResponses  []any          `json:"IntegrationResponses,omitempty"`
	PassthroughBehavior   any            `json:"PassthroughBehavior,omitempty"`
	RequestParameters     map[string]any `json:"RequestParameters,omitempty"`
	RequestTemplates      map[string]any `json:"RequestTemplates,omitempty"`
	Type_                 any            `json:"Type,omitempty"`
	Uri                   any            `json:"Uri,omitempty"`
}

// Method_IntegrationResponse maps a backend result to a method response.
type Method_IntegrationResponse struct {
	ResponseParameters map[string]any `json:"ResponseParameters,omitempty"`
	ResponseTemplates  map[string]any `json:"ResponseTemplates,omitempty"`
	SelectionPattern   any            `json:"SelectionPattern,omitempty"`
	StatusCode         any            `json:"StatusCode,omitempty"`
}

// Method_MethodResponse declares a status code and headers a Method may return.
type Method_MethodResponse struct {
	ResponseModels     map[string]any `json:"ResponseModels,omitempty"`
	ResponseParameters map[string]any `json:"ResponseParameters,omitempty"`
	StatusCode         any            `json:"StatusCode,omitempty"`
}

// RequestValidator is AWS::ApiGateway::RequestValidator.
type RequestValidator struct {
	Name                      any  `json:"Name,omitempty"`
	RestApiId                 any  `json:"RestApiId,omitempty"`
	ValidateRequestBody       bool `json:"ValidateRequestBody,omitempty"`
	ValidateRequestParameters bool `json:"ValidateRequestParameters,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (RequestValidator) ResourceType() string { return "AWS::ApiGateway::RequestValidator" }

// Deployment is AWS::ApiGateway::Deployment.
type Deployment struct {
	Description any `json:"Description,omitempty"`
	RestApiId   any `json:"RestApiId,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Deployment) ResourceType() string { return "AWS::ApiGateway::Deployment" }

// Stage is AWS::ApiGateway::Stage.
type Stage struct {
	DeploymentId any `json:"DeploymentId,omitempty"`
	RestApiId    any `json:"RestApiId,omitempty"`
	StageName    any `json:"StageName,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (Stage) ResourceType() string { return "AWS::ApiGateway::Stage" }
