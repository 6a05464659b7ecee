// Command hello is the Lambda entry point behind GET /hello. It is built
// as the bootstrap binary of the provided.al2023 runtime.
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/handler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("HELLOSTACK_LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	lambda.Start(handler.New(logger).Handle)
}
