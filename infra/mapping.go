package infra

// Request and response mapping for the GET /hello integration. These are
// data handed to API Gateway verbatim.

// HelloRequestTemplate renders the invocation event from the query string
// and the request context.
const HelloRequestTemplate = `{` +
	`"name":"$util.escapeJavaScript($input.params('name'))",` +
	`"stage":"$context.stage",` +
	`"request_id":"$context.requestId",` +
	`"api_id":"$context.apiId",` +
	`"resource_path":"$context.resourcePath",` +
	`"resource_id":"$context.resourceId",` +
	`"http_method":"$context.httpMethod",` +
	`"source_ip":"$context.identity.sourceIp",` +
	`"user_agent":"$context.identity.userAgent",` +
	`"account_id":"$context.identity.accountId",` +
	`"api_key":"$context.identity.apiKey",` +
	`"caller":"$context.identity.caller",` +
	`"user_name":"$context.authorizer.claims['cognito:username']",` +
	`"user_id":"$context.authorizer.claims['sub']"` +
	`}`

// HelloResponseTemplate unwraps the function's pre-serialized body.
const HelloResponseTemplate = `$input.path('$.body')`

// ErrorSelectionPattern matches any non-empty error message.
const ErrorSelectionPattern = "(\n|.)+"

const (
	jsonContentType = "application/json"

	nameQueryParameter        = "method.request.querystring.name"
	nameIntegrationParameter  = "integration.request.querystring.name"
	allowOriginHeader         = "method.response.header.Access-Control-Allow-Origin"
	allowHeadersHeader        = "method.response.header.Access-Control-Allow-Headers"
	allowMethodsHeader        = "method.response.header.Access-Control-Allow-Methods"
	passthroughWhenNoTemplate = "WHEN_NO_TEMPLATES"
)

// CORS preflight values. Header values are static mapping expressions,
// hence the single quotes.
const (
	CorsAllowOrigins = "'*'"
	CorsAllowMethods = "'OPTIONS,GET,PUT,POST,DELETE,PATCH,HEAD'"
	CorsAllowHeaders = "'Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token,X-Amz-User-Agent'"
	CorsStatusCode   = "204"
)

// corsResponseParameters are returned by every preflight.
var corsResponseParameters = map[string]any{
	allowHeadersHeader: CorsAllowHeaders,
	allowOriginHeader:  CorsAllowOrigins,
	allowMethodsHeader: CorsAllowMethods,
}

// helloResponseParameters are returned with both the 200 and the 500 response.
var helloResponseParameters = map[string]any{
	allowOriginHeader: CorsAllowOrigins,
}
