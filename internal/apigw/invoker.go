package apigw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
)

// Invoker runs a function with a JSON payload and returns its JSON output.
// lambda.Handler satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
}

// FunctionError is an error raised by the function, in the shape the
// Lambda runtime reports it.
type FunctionError struct {
	Message string `json:"errorMessage"`
	Type    string `json:"errorType,omitempty"`
}

func (e *FunctionError) Error() string { return e.Message }

// NewHandlerInvoker wraps an in-process handler function such as
// handler.Handle. Payload decoding follows the Lambda runtime.
func NewHandlerInvoker(handlerFunc any) Invoker {
	return lambda.NewHandler(handlerFunc)
}

// invoke runs inv and reports a panic in the function as a *FunctionError,
// the way the Go runtime reports one to Lambda.
func invoke(ctx context.Context, inv Invoker, payload []byte) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = &FunctionError{Message: fmt.Sprintf("%v", p), Type: typeName(p)}
		}
	}()
	return inv.Invoke(ctx, payload)
}

// toFunctionError converts an invocation error to the runtime's error shape.
func toFunctionError(err error) *FunctionError {
	var fe *FunctionError
	if errors.As(err, &fe) {
		return fe
	}
	return &FunctionError{Message: err.Error(), Type: typeName(err)}
}

// typeName names a value by its dynamic type, as the Go runtime does for
// errors and panic values.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		return t.Elem().Name()
	}
	return t.Name()
}

// LambdaAPI is the subset of the Lambda client the remote invoker uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambdasvc.InvokeInput, optFns ...func(*lambdasvc.Options)) (*lambdasvc.InvokeOutput, error)
}

// LambdaInvoker invokes a deployed function synchronously.
type LambdaInvoker struct {
	Client       LambdaAPI
	FunctionName string
}

// Invoke calls the function. A function error is returned as *FunctionError.
func (l *LambdaInvoker) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	out, err := l.Client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName: aws.String(l.FunctionName),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking %s: %w", l.FunctionName, err)
	}

	if out.FunctionError != nil {
		fe := &FunctionError{}
		if err := json.Unmarshal(out.Payload, fe); err != nil || fe.Message == "" {
			fe.Message = aws.ToString(out.FunctionError)
		}
		return nil, fe
	}
	return out.Payload, nil
}
