package apigw

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yalp/jsonpath"
)

const (
	defaultContentType  = "application/json"
	responseHeaderParam = "method.response.header."
	bodyParamPrefix     = "integration.response.body"
)

// request is an incoming call in the shape the mapping templates see it.
type request struct {
	params      map[string]map[string]string
	body        []byte
	contentType string
	context     map[string]any
}

func (g *Gateway) serve(r *route, m *method) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := g.newRequest(c, r)
		if err != nil {
			_ = c.Error(err)
			writeMessage(c, http.StatusBadRequest, "BadRequestException", "Invalid request body")
			return
		}

		if m.validateParams {
			if missing := missingParameters(m, req); len(missing) > 0 {
				writeMessage(c, http.StatusBadRequest, "BadRequestException",
					"Missing required request parameters: ["+strings.Join(missing, ", ")+"]")
				return
			}
		}

		switch m.integration.typ {
		case "MOCK":
			g.serveMock(c, m, req)
		case "AWS_PROXY":
			g.serveProxy(c, r, m, req)
		default:
			g.serveLambda(c, m, req)
		}
	}
}

func (g *Gateway) newRequest(c *gin.Context, r *route) (*request, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}

	path := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		path[p.Key] = strings.TrimPrefix(p.Value, "/")
	}
	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		query[k] = v[0]
	}
	header := make(map[string]string)
	for k, v := range c.Request.Header {
		header[k] = v[0]
		header[strings.ToLower(k)] = v[0]
	}

	contentType := defaultContentType
	if ct := c.GetHeader("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			contentType = mt
		}
	}

	id := c.GetString(requestIDKey)
	now := time.Now()
	return &request{
		params:      map[string]map[string]string{"path": path, "querystring": query, "header": header},
		body:        body,
		contentType: contentType,
		context: map[string]any{
			"stage":            g.opts.Stage,
			"requestId":        id,
			"apiId":            g.api,
			"resourcePath":     r.path,
			"resourceId":       r.resourceID,
			"httpMethod":       c.Request.Method,
			"path":             "/" + g.opts.Stage + c.Request.URL.Path,
			"protocol":         c.Request.Proto,
			"requestTimeEpoch": strconv.FormatInt(now.UnixMilli(), 10),
			"requestTime":      now.UTC().Format("02/Jan/2006:15:04:05 -0700"),
			"domainName":       c.Request.Host,
			"identity": map[string]any{
				"sourceIp":  c.ClientIP(),
				"userAgent": c.Request.UserAgent(),
				"accountId": "",
				"apiKey":    "",
				"caller":    "",
				"user":      "",
			},
			"authorizer": map[string]any{
				"claims": map[string]any{},
			},
		},
	}, nil
}

// missingParameters lists required parameters absent from req. A
// parameter sent with an empty value is present.
func missingParameters(m *method, req *request) []string {
	var missing []string
	for _, param := range m.required {
		// method.request.<location>.<name>
		rest := strings.TrimPrefix(param, "method.request.")
		loc, name, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}
		values := req.params[loc]
		if loc == "header" {
			name = strings.ToLower(name)
		}
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (g *Gateway) renderer(req *request, body string) *renderer {
	return &renderer{
		params:         req.params,
		context:        req.context,
		stageVariables: g.opts.StageVariables,
		body:           body,
	}
}

func (g *Gateway) serveMock(c *gin.Context, m *method, req *request) {
	resp, ok := defaultResponse(m.integration.responses)
	if !ok {
		writeMessage(c, http.StatusInternalServerError, "", "Internal server error")
		return
	}
	g.respond(c, resp, req, "")
}

func (g *Gateway) serveLambda(c *gin.Context, m *method, req *request) {
	payload, status := g.integrationRequest(c, m, req)
	if status != 0 {
		message := "Unsupported Media Type"
		if status == http.StatusInternalServerError {
			message = "Internal server error"
		}
		writeMessage(c, status, "", message)
		return
	}

	out, err := invoke(c.Request.Context(), g.invoker(m.integration.function), payload)
	if err != nil {
		fe := toFunctionError(err)
		g.opts.Logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"function":   m.integration.function,
			"error_type": fe.Type,
		}).WithError(fe).Warn("function error")

		errBody, _ := json.Marshal(fe)
		resp, ok := selectResponse(m.integration.responses, fe.Message)
		if !ok {
			writeMessage(c, http.StatusInternalServerError, "", "Internal server error")
			return
		}
		g.respond(c, resp, req, string(errBody))
		return
	}

	resp, ok := defaultResponse(m.integration.responses)
	if !ok {
		writeMessage(c, http.StatusInternalServerError, "", "Internal server error")
		return
	}
	g.respond(c, resp, req, string(out))
}

// integrationRequest renders the payload for the request content type.
// A non-zero status rejects the request.
func (g *Gateway) integrationRequest(c *gin.Context, m *method, req *request) ([]byte, int) {
	if tmpl, ok := m.integration.requestTemplates[req.contentType]; ok {
		rendered, err := g.renderer(req, string(req.body)).render(tmpl)
		if err != nil {
			_ = c.Error(err)
			return nil, http.StatusInternalServerError
		}
		return []byte(rendered), 0
	}

	switch m.integration.passthrough {
	case "WHEN_NO_MATCH":
		return req.body, 0
	case "WHEN_NO_TEMPLATES":
		if len(m.integration.requestTemplates) == 0 {
			return req.body, 0
		}
	}
	return nil, http.StatusUnsupportedMediaType
}

// serveProxy sends the request as a proxy event and returns the function's
// response as-is.
func (g *Gateway) serveProxy(c *gin.Context, r *route, m *method, req *request) {
	event := events.APIGatewayProxyRequest{
		Resource:              r.path,
		Path:                  c.Request.URL.Path,
		HTTPMethod:            c.Request.Method,
		Headers:               proxyHeaders(c.Request.Header),
		QueryStringParameters: req.params["querystring"],
		PathParameters:        req.params["path"],
		StageVariables:        g.opts.StageVariables,
		Body:                  string(req.body),
		RequestContext: events.APIGatewayProxyRequestContext{
			Stage:        g.opts.Stage,
			RequestID:    c.GetString(requestIDKey),
			APIID:        g.api,
			ResourceID:   r.resourceID,
			ResourcePath: r.path,
			HTTPMethod:   c.Request.Method,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		_ = c.Error(err)
		writeMessage(c, http.StatusInternalServerError, "", "Internal server error")
		return
	}

	out, err := invoke(c.Request.Context(), g.invoker(m.integration.function), payload)
	if err != nil {
		_ = c.Error(err)
		writeMessage(c, http.StatusBadGateway, "", "Internal server error")
		return
	}

	var resp events.APIGatewayProxyResponse
	if err := json.Unmarshal(out, &resp); err != nil || resp.StatusCode == 0 {
		writeMessage(c, http.StatusBadGateway, "", "Internal server error")
		return
	}
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		if body, err = base64.StdEncoding.DecodeString(resp.Body); err != nil {
			writeMessage(c, http.StatusBadGateway, "", "Internal server error")
			return
		}
	}
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	for k, values := range resp.MultiValueHeaders {
		for _, v := range values {
			c.Writer.Header().Add(k, v)
		}
	}
	contentType := c.Writer.Header().Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	c.Data(resp.StatusCode, contentType, body)
}

func proxyHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v[0]
	}
	return out
}

// defaultResponse returns the integration response without a selection pattern.
func defaultResponse(responses []integrationResponse) (integrationResponse, bool) {
	for _, r := range responses {
		if r.pattern == nil {
			return r, true
		}
	}
	return integrationResponse{}, false
}

// selectResponse picks the first response whose pattern matches the error
// message, falling back to the default response.
func selectResponse(responses []integrationResponse, message string) (integrationResponse, bool) {
	for _, r := range responses {
		if r.pattern != nil && r.pattern.MatchString(message) {
			return r, true
		}
	}
	return defaultResponse(responses)
}

// respond writes resp with output as the integration response body.
func (g *Gateway) respond(c *gin.Context, resp integrationResponse, req *request, output string) {
	for _, name := range sortedKeys(resp.parameters) {
		header, ok := strings.CutPrefix(name, responseHeaderParam)
		if !ok {
			continue
		}
		if value, ok := responseParameter(resp.parameters[name], output); ok {
			c.Header(header, value)
		}
	}

	body := output
	if tmpl, ok := responseTemplate(resp.templates); ok {
		rendered, err := g.renderer(req, output).render(tmpl)
		if err != nil {
			_ = c.Error(err)
			writeMessage(c, http.StatusInternalServerError, "", "Internal server error")
			return
		}
		body = rendered
	}

	contentType := c.Writer.Header().Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	if body == "" {
		c.Header("Content-Type", contentType)
		c.Status(resp.statusCode)
		return
	}
	c.Data(resp.statusCode, contentType, []byte(body))
}

// responseParameter evaluates a mapping expression: a static '...' value
// or integration.response.body[.path].
func responseParameter(expr, output string) (string, bool) {
	if len(expr) >= 2 && strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'") {
		return expr[1 : len(expr)-1], true
	}
	rest, ok := strings.CutPrefix(expr, bodyParamPrefix)
	if !ok {
		return "", false
	}
	if rest == "" {
		return output, true
	}
	var doc any
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return "", false
	}
	v, err := jsonpath.Read(doc, "$"+rest)
	if err != nil {
		return "", false
	}
	return stringify(v), true
}

func responseTemplate(templates map[string]string) (string, bool) {
	if tmpl, ok := templates[defaultContentType]; ok {
		return tmpl, tmpl != ""
	}
	for _, k := range sortedKeys(templates) {
		return templates[k], templates[k] != ""
	}
	return "", false
}

// writeMessage writes an API Gateway style {"message": ...} error.
func writeMessage(c *gin.Context, status int, errorType, message string) {
	if errorType != "" {
		c.Header("x-amzn-ErrorType", errorType)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
