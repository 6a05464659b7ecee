package apigw

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/serialize"
)

const (
	typeRestAPI          = "AWS::ApiGateway::RestApi"
	typeResource         = "AWS::ApiGateway::Resource"
	typeMethod           = "AWS::ApiGateway::Method"
	typeRequestValidator = "AWS::ApiGateway::RequestValidator"
	typeFunction         = "AWS::Lambda::Function"
)

// Route describes one declared method.
type Route struct {
	Path       string
	HTTPMethod string
	MethodID   string
	Type       string
	Function   string
}

// route is a resource path with its methods.
type route struct {
	path       string
	resourceID string
	methods    map[string]*method
}

type method struct {
	id             string
	httpMethod     string
	required       []string
	validateParams bool
	integration    integration
}

type integration struct {
	typ               string
	function          string
	passthrough       string
	requestParameters map[string]string
	requestTemplates  map[string]string
	responses         []integrationResponse
}

type integrationResponse struct {
	statusCode int
	pattern    *regexp.Regexp
	parameters map[string]string
	templates  map[string]string
}

// Shapes decoded from template properties.
type methodProps struct {
	HttpMethod         string
	ResourceId         any
	RestApiId          any
	RequestParameters  map[string]any
	RequestValidatorId any
	Integration        *integrationProps
}

type integrationProps struct {
	Type                 string
	PassthroughBehavior  string
	RequestParameters    map[string]string
	RequestTemplates     map[string]string
	IntegrationResponses []integrationResponseProps
	Uri                  any
}

type integrationResponseProps struct {
	StatusCode         any
	SelectionPattern   string
	ResponseParameters map[string]string
	ResponseTemplates  map[string]string
}

type resourceProps struct {
	ParentId  any
	PathPart  string
	RestApiId any
}

type validatorProps struct {
	ValidateRequestParameters bool
}

func decodeProps(props map[string]any, v any) error {
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// target returns the logical ID and attribute a Ref or Fn::GetAtt names.
func target(v any) (string, string) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", ""
	}
	if ref, ok := m["Ref"].(string); ok {
		return ref, ""
	}
	switch args := m["Fn::GetAtt"].(type) {
	case []any:
		if len(args) == 2 {
			name, _ := args[0].(string)
			attr, _ := args[1].(string)
			return name, attr
		}
	case string:
		name, attr, _ := strings.Cut(args, ".")
		return name, attr
	}
	return "", ""
}

// findRestAPI returns the logical ID of the API to serve.
func findRestAPI(t *hellostack.Template, want string) (string, error) {
	if want != "" {
		res, ok := t.Resources[want]
		if !ok || res.Type != typeRestAPI {
			return "", fmt.Errorf("no %s named %q", typeRestAPI, want)
		}
		return want, nil
	}
	var apis []string
	for name, res := range t.Resources {
		if res.Type == typeRestAPI {
			apis = append(apis, name)
		}
	}
	sort.Strings(apis)
	switch len(apis) {
	case 0:
		return "", fmt.Errorf("template declares no %s", typeRestAPI)
	case 1:
		return apis[0], nil
	default:
		return "", fmt.Errorf("template declares several REST APIs (%s); choose one", strings.Join(apis, ", "))
	}
}

// buildRoutes resolves resource paths and collects the methods of api.
func buildRoutes(t *hellostack.Template, api string) (map[string]*route, error) {
	resources := make(map[string]resourceProps)
	for name, res := range t.Resources {
		if res.Type != typeResource {
			continue
		}
		var p resourceProps
		if err := decodeProps(res.Properties, &p); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if id, _ := target(p.RestApiId); id == api {
			resources[name] = p
		}
	}

	paths := make(map[string]string)
	var resolve func(name string, depth int) (string, error)
	resolve = func(name string, depth int) (string, error) {
		if p, ok := paths[name]; ok {
			return p, nil
		}
		if depth > len(resources) {
			return "", fmt.Errorf("%s: resource parents form a cycle", name)
		}
		res, ok := resources[name]
		if !ok {
			return "", fmt.Errorf("unknown resource %q", name)
		}
		parent, attr := target(res.ParentId)
		var prefix string
		switch {
		case parent == api && attr == "RootResourceId":
			prefix = ""
		case parent != "":
			p, err := resolve(parent, depth+1)
			if err != nil {
				return "", err
			}
			prefix = strings.TrimSuffix(p, "/")
		default:
			return "", fmt.Errorf("%s: unsupported ParentId", name)
		}
		paths[name] = prefix + "/" + res.PathPart
		return paths[name], nil
	}

	routes := make(map[string]*route)
	for _, name := range sortedNames(t) {
		res := t.Resources[name]
		if res.Type != typeMethod {
			continue
		}
		var p methodProps
		if err := decodeProps(res.Properties, &p); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if id, _ := target(p.RestApiId); id != api {
			continue
		}

		path, resourceID := "/", api
		if id, attr := target(p.ResourceId); !(id == api && attr == "RootResourceId") {
			resolved, err := resolve(id, 0)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			path, resourceID = resolved, id
		}

		m, err := newMethod(t, name, p)
		if err != nil {
			return nil, err
		}

		r, ok := routes[path]
		if !ok {
			r = &route{path: path, resourceID: resourceID, methods: make(map[string]*method)}
			routes[path] = r
		}
		if _, dup := r.methods[m.httpMethod]; dup {
			return nil, fmt.Errorf("%s: duplicate %s %s", name, m.httpMethod, path)
		}
		r.methods[m.httpMethod] = m
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("%s declares no methods", api)
	}
	return routes, nil
}

func newMethod(t *hellostack.Template, name string, p methodProps) (*method, error) {
	m := &method{id: name, httpMethod: strings.ToUpper(p.HttpMethod)}
	if m.httpMethod == "" {
		return nil, fmt.Errorf("%s: missing HttpMethod", name)
	}

	for param, required := range p.RequestParameters {
		if isTrue(required) {
			m.required = append(m.required, param)
		}
	}
	sort.Strings(m.required)

	if id, _ := target(p.RequestValidatorId); id != "" {
		res, ok := t.Resources[id]
		if !ok || res.Type != typeRequestValidator {
			return nil, fmt.Errorf("%s: unknown request validator %q", name, id)
		}
		var v validatorProps
		if err := decodeProps(res.Properties, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		m.validateParams = v.ValidateRequestParameters
	}

	if p.Integration == nil {
		return nil, fmt.Errorf("%s: missing Integration", name)
	}
	integ := p.Integration
	m.integration = integration{
		typ:               strings.ToUpper(integ.Type),
		passthrough:       strings.ToUpper(integ.PassthroughBehavior),
		requestParameters: integ.RequestParameters,
		requestTemplates:  integ.RequestTemplates,
	}
	if m.integration.passthrough == "" {
		m.integration.passthrough = "WHEN_NO_MATCH"
	}

	switch m.integration.typ {
	case "MOCK":
	case "AWS", "AWS_PROXY":
		for _, ref := range serialize.References(integ.Uri) {
			if res, ok := t.Resources[ref]; ok && res.Type == typeFunction {
				m.integration.function = ref
			}
		}
		if m.integration.function == "" {
			return nil, fmt.Errorf("%s: integration URI names no function", name)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported integration type %q", name, integ.Type)
	}

	for i, r := range integ.IntegrationResponses {
		code, err := strconv.Atoi(fmt.Sprint(r.StatusCode))
		if err != nil {
			return nil, fmt.Errorf("%s: integration response %d: bad status code %v", name, i, r.StatusCode)
		}
		resp := integrationResponse{
			statusCode: code,
			parameters: r.ResponseParameters,
			templates:  r.ResponseTemplates,
		}
		if r.SelectionPattern != "" {
			// Selection patterns must match the whole error message.
			re, err := regexp.Compile(`^(?:` + r.SelectionPattern + `)$`)
			if err != nil {
				return nil, fmt.Errorf("%s: selection pattern %q: %w", name, r.SelectionPattern, err)
			}
			resp.pattern = re
		}
		m.integration.responses = append(m.integration.responses, resp)
	}

	return m, nil
}

func isTrue(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	}
	return false
}

func sortedNames(t *hellostack.Template) []string {
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
