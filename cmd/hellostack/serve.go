package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	hellostack "github.com/olatheander/aws-cdk-lambda-monorepo"
	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/apigw"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/config"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/deploy"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/handler"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/template"
)

type serveOptions struct {
	addr         string
	templateFile string
	remote       bool
	functionName string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API locally",
		Long: `Serve runs the REST API declared by the stack on a local HTTP server.
Methods, request validation, mapping templates and integration responses
follow the template. Requests reach the handler in-process, or the
deployed function with --remote.

Examples:
    hellostack serve
    hellostack serve --addr :8080
    hellostack serve --remote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.addr == "" {
				opts.addr = cfg.ServeAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := cfg.Logger()
			gw, err := newServeGateway(ctx, cfg, logger, opts)
			if err != nil {
				return err
			}

			for _, r := range gw.Routes() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-7s http://%s%s\n", r.HTTPMethod, opts.addr, r.Path)
			}
			return gw.Serve(ctx, opts.addr)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default: serve_addr from config)")
	cmd.Flags().StringVarP(&opts.templateFile, "template", "t", "", "Serve a template file instead of the synthesized stack")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Invoke the deployed function instead of the local handler")
	cmd.Flags().StringVar(&opts.functionName, "function", "", "Function to invoke with --remote (default: stack output "+infra.FunctionNameOutput+")")

	return cmd
}

// newServeGateway builds the emulator over the configured template and
// invoker.
func newServeGateway(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts serveOptions) (*apigw.Gateway, error) {
	var (
		tmpl *hellostack.Template
		err  error
	)
	if opts.templateFile != "" {
		tmpl, err = template.Load(opts.templateFile)
	} else {
		tmpl, err = infra.Synthesize(cfg.StackProps())
	}
	if err != nil {
		return nil, err
	}

	invoker, err := newInvoker(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	return apigw.FromTemplate(tmpl, apigw.Options{
		Stage:   cfg.StageName,
		Invoker: invoker,
		Logger:  logger,
	})
}

func newInvoker(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts serveOptions) (apigw.Invoker, error) {
	if !opts.remote {
		return apigw.NewHandlerInvoker(handler.New(logger).Handle), nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	name := opts.functionName
	if name == "" {
		name, err = stackFunctionName(ctx, deploy.New(awsCfg, logger), cfg.StackName)
		if err != nil {
			return nil, err
		}
	}
	logger.WithField("function", name).Info("invoking deployed function")

	return &apigw.LambdaInvoker{
		Client:       lambdasvc.NewFromConfig(awsCfg),
		FunctionName: name,
	}, nil
}

// stackFunctionName reads the function name from the stack outputs.
func stackFunctionName(ctx context.Context, d *deploy.Deployer, stackName string) (string, error) {
	outputs, err := d.Outputs(ctx, stackName)
	if err != nil {
		return "", err
	}
	name := outputs[infra.FunctionNameOutput]
	if name == "" {
		return "", fmt.Errorf("stack %s has no %s output", stackName, infra.FunctionNameOutput)
	}
	return name, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}
