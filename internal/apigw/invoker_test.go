package apigw

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/handler"
)

type fakeLambda struct {
	input  *lambdasvc.InvokeInput
	output *lambdasvc.InvokeOutput
	err    error
}

func (f *fakeLambda) Invoke(_ context.Context, params *lambdasvc.InvokeInput, _ ...func(*lambdasvc.Options)) (*lambdasvc.InvokeOutput, error) {
	f.input = params
	return f.output, f.err
}

func TestLambdaInvoker_Success(t *testing.T) {
	client := &fakeLambda{output: &lambdasvc.InvokeOutput{StatusCode: 200, Payload: []byte(`{"body":"{}"}`)}}
	inv := &LambdaInvoker{Client: client, FunctionName: "hello-fn"}

	out, err := inv.Invoke(context.Background(), []byte(`{"name":"x"}`))

	require.NoError(t, err)
	assert.Equal(t, `{"body":"{}"}`, string(out))
	assert.Equal(t, "hello-fn", aws.ToString(client.input.FunctionName))
	assert.Equal(t, `{"name":"x"}`, string(client.input.Payload))
}

func TestLambdaInvoker_FunctionError(t *testing.T) {
	client := &fakeLambda{output: &lambdasvc.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"boom","errorType":"errorString"}`),
	}}
	inv := &LambdaInvoker{Client: client, FunctionName: "hello-fn"}

	_, err := inv.Invoke(context.Background(), nil)

	var fe *FunctionError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "boom", fe.Message)
	assert.Equal(t, "errorString", fe.Type)
}

func TestLambdaInvoker_UnparsableFunctionError(t *testing.T) {
	client := &fakeLambda{output: &lambdasvc.InvokeOutput{
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte("Task timed out"),
	}}
	inv := &LambdaInvoker{Client: client, FunctionName: "hello-fn"}

	_, err := inv.Invoke(context.Background(), nil)

	var fe *FunctionError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Unhandled", fe.Message)
}

func TestLambdaInvoker_ClientError(t *testing.T) {
	inv := &LambdaInvoker{Client: &fakeLambda{err: errors.New("no credentials")}, FunctionName: "hello-fn"}

	_, err := inv.Invoke(context.Background(), nil)

	assert.ErrorContains(t, err, "invoking hello-fn: no credentials")
}

type notFoundError struct{}

func (notFoundError) Error() string { return "missing" }

func TestToFunctionError(t *testing.T) {
	fe := toFunctionError(errors.New("plain"))
	assert.Equal(t, &FunctionError{Message: "plain", Type: "errorString"}, fe)

	fe = toFunctionError(notFoundError{})
	assert.Equal(t, "notFoundError", fe.Type)

	original := &FunctionError{Message: "kept", Type: "Custom"}
	assert.Same(t, original, toFunctionError(original))
}

func TestHandlerInvoker(t *testing.T) {
	inv := NewHandlerInvoker(handler.Handle)

	out, err := inv.Invoke(context.Background(), []byte(`{"name":"World"}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"statusCode":200`)
	assert.Contains(t, string(out), `{\"name\":\"Kalle\",\"age\":42}`)

	_, err = inv.Invoke(context.Background(), []byte(`not json`))
	assert.Error(t, err)
}
