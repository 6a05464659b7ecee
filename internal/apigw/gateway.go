// Package apigw serves a synthesized REST API locally.
//
// The gateway reads AWS::ApiGateway::Resource and AWS::ApiGateway::Method
// declarations from a template and reproduces the request pipeline of an
// edge API: routing, request validation, mapping templates, Lambda
// invocation and integration response selection. Requests are served
// without the stage prefix; the stage is taken from Options.
package apigw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
)

// ErrRouteNotFound is returned by Match when no declared method serves a request.
var ErrRouteNotFound = errors.New("route not found")

// DefaultStage is the stage reported in $context.stage when none is set.
const DefaultStage = "prod"

const shutdownTimeout = 5 * time.Second

// Options configures a Gateway.
type Options struct {
	// Stage is reported as $context.stage.
	Stage string
	// StageVariables are exposed as $stageVariables.
	StageVariables map[string]string
	// Invokers maps function logical IDs to invokers.
	Invokers map[string]Invoker
	// Invoker serves functions missing from Invokers.
	Invoker Invoker
	// RestAPI selects the API when the template declares several.
	RestAPI string
	Logger  *logrus.Logger
}

// Gateway is a local REST API built from a template. It is safe for
// concurrent use.
type Gateway struct {
	opts   Options
	api    string
	routes map[string]*route
	engine *gin.Engine
}

// FromTemplate builds a gateway for the REST API declared in t.
func FromTemplate(t *hellostack.Template, opts Options) (*Gateway, error) {
	if t == nil {
		return nil, errors.New("nil template")
	}
	if opts.Stage == "" {
		opts.Stage = DefaultStage
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	api, err := findRestAPI(t, opts.RestAPI)
	if err != nil {
		return nil, err
	}
	routes, err := buildRoutes(t, api)
	if err != nil {
		return nil, err
	}

	g := &Gateway{opts: opts, api: api, routes: routes}
	for _, r := range g.Routes() {
		if r.Function == "" {
			continue
		}
		if g.invoker(r.Function) == nil {
			return nil, fmt.Errorf("%s %s: no invoker for function %s", r.HTTPMethod, r.Path, r.Function)
		}
	}
	g.engine = g.newEngine()
	return g, nil
}

func (g *Gateway) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(g.opts.Logger))

	for _, path := range g.sortedPaths() {
		r := g.routes[path]
		ginPath := toGinPath(path)
		for _, m := range r.methods {
			if m.httpMethod == "ANY" {
				engine.Any(ginPath, g.serve(r, m))
				continue
			}
			engine.Handle(m.httpMethod, ginPath, g.serve(r, m))
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		_ = c.Error(ErrRouteNotFound)
		writeMessage(c, http.StatusForbidden, "MissingAuthenticationTokenException", "Missing Authentication Token")
	})
	return engine
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// RestAPI returns the logical ID of the served API.
func (g *Gateway) RestAPI() string {
	return g.api
}

// Routes lists the declared methods ordered by path and method.
func (g *Gateway) Routes() []Route {
	var out []Route
	for _, path := range g.sortedPaths() {
		r := g.routes[path]
		methods := make([]string, 0, len(r.methods))
		for name := range r.methods {
			methods = append(methods, name)
		}
		sort.Strings(methods)
		for _, name := range methods {
			m := r.methods[name]
			out = append(out, Route{
				Path:       path,
				HTTPMethod: name,
				MethodID:   m.id,
				Type:       m.integration.typ,
				Function:   m.integration.function,
			})
		}
	}
	return out
}

// Match returns the route serving method and path, or ErrRouteNotFound.
func (g *Gateway) Match(method, path string) (Route, error) {
	for _, r := range g.Routes() {
		if (r.HTTPMethod == strings.ToUpper(method) || r.HTTPMethod == "ANY") && matchPath(r.Path, path) {
			return r, nil
		}
	}
	return Route{}, fmt.Errorf("%s %s: %w", method, path, ErrRouteNotFound)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		g.opts.Logger.WithFields(logrus.Fields{
			"addr":     addr,
			"rest_api": g.api,
			"stage":    g.opts.Stage,
		}).Info("serving API")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (g *Gateway) invoker(function string) Invoker {
	if inv, ok := g.opts.Invokers[function]; ok {
		return inv
	}
	return g.opts.Invoker
}

func (g *Gateway) sortedPaths() []string {
	paths := make([]string, 0, len(g.routes))
	for path := range g.routes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// toGinPath converts /items/{id} to /items/:id and {proxy+} to *proxy.
func toGinPath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			continue
		}
		name := part[1 : len(part)-1]
		if strings.HasSuffix(name, "+") {
			parts[i] = "*" + strings.TrimSuffix(name, "+")
		} else {
			parts[i] = ":" + name
		}
	}
	return strings.Join(parts, "/")
}

func matchPath(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range want {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "+}") {
			return len(got) > i && got[i] != ""
		}
		if i >= len(got) {
			return false
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if part != got[i] {
			return false
		}
	}
	return len(want) == len(got)
}
