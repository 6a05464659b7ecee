// Package handler implements the hello function invoked behind GET /hello.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/sirupsen/logrus"
)

// InvocationEvent is the payload rendered by the API's request template.
type InvocationEvent struct {
	Name         string `json:"name"`
	Stage        string `json:"stage"`
	RequestID    string `json:"request_id"`
	APIID        string `json:"api_id"`
	ResourcePath string `json:"resource_path"`
	ResourceID   string `json:"resource_id"`
	HTTPMethod   string `json:"http_method"`
	SourceIP     string `json:"source_ip"`
	UserAgent    string `json:"user_agent"`
	AccountID    string `json:"account_id"`
	APIKey       string `json:"api_key"`
	Caller       string `json:"caller"`
	UserName     string `json:"user_name"`
	UserID       string `json:"user_id"`
}

// Person is the record returned for every request.
type Person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Record is the fixed response payload.
var Record = Person{Name: "Kalle", Age: 42}

// Handler answers invocations with Record.
type Handler struct {
	logger *logrus.Logger
}

// New creates a handler that logs through logger.
func New(logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{logger: logger}
}

// Handle returns Record as a pre-serialized JSON body with status 200.
// The event's name is accepted but not used.
func (h *Handler) Handle(ctx context.Context, event InvocationEvent) (events.APIGatewayProxyResponse, error) {
	fields := logrus.Fields{
		"stage":         event.Stage,
		"request_id":    event.RequestID,
		"resource_path": event.ResourcePath,
		"http_method":   event.HTTPMethod,
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		fields["aws_request_id"] = lc.AwsRequestID
	}
	h.logger.WithFields(fields).Debug("hello invoked")

	body, err := json.Marshal(Record)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("encoding response: %w", err)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

var defaultHandler = New(nil)

// Handle invokes the default handler.
func Handle(ctx context.Context, event InvocationEvent) (events.APIGatewayProxyResponse, error) {
	return defaultHandler.Handle(ctx, event)
}
