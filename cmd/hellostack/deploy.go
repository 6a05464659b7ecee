package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/bundle"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/deploy"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/validation"
)

func newDeployCmd() *cobra.Command {
	var (
		pkg    packageOptions
		bucket string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Package the function and deploy the stack",
		Long: `Deploy packages the function, uploads the archive to the code bucket,
then creates or updates the CloudFormation stack and waits for it to
settle. The template is validated before anything is uploaded.

Examples:
    hellostack deploy
    HELLOSTACK_STAGE_NAME=dev hellostack deploy --bucket my-artifacts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.CodeBucket
			}
			if bucket == "" {
				return errors.New("no code bucket: set code_bucket, HELLOSTACK_CODE_BUCKET or --bucket")
			}
			if pkg.arch == "" {
				pkg.arch = cfg.Architecture
			}
			logger := cfg.Logger()

			tmpl, err := infra.Synthesize(cfg.StackProps())
			if err != nil {
				return err
			}
			check, err := (&validation.Validator{SkipLint: true}).Validate(tmpl)
			if err != nil {
				return err
			}
			if !check.Success {
				_ = outputValidateResult(cmd.ErrOrStderr(), *check, "text")
				return errValidationFailed
			}

			artifact, err := bundle.Build(ctx, bundle.Options{
				Dir:    pkg.dir,
				Arch:   pkg.arch,
				OutDir: pkg.outDir,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("packaging failed: %w", err)
			}

			awsCfg, err := loadAWSConfig(ctx, cfg)
			if err != nil {
				return err
			}

			result, err := deploy.New(awsCfg, logger).Deploy(ctx, deploy.Input{
				StackName: cfg.StackName,
				Template:  tmpl,
				Artifact:  artifact,
				Bucket:    bucket,
				Prefix:    cfg.CodePrefix,
			})
			if err != nil {
				return err
			}

			printDeployResult(cmd.OutOrStdout(), cfg.StackName, result)
			return nil
		},
	}

	pkg.register(cmd)
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket for the function archive (default: code_bucket from config)")

	return cmd
}

func printDeployResult(w io.Writer, stackName string, r *deploy.Result) {
	green := color.New(color.FgGreen, color.Bold)

	switch {
	case r.NoChanges:
		color.New(color.FgYellow).Fprintf(w, "Stack %s is up to date", stackName)
	case r.Created:
		green.Fprintf(w, "Stack %s created", stackName)
	default:
		green.Fprintf(w, "Stack %s updated", stackName)
	}
	fmt.Fprintf(w, " (%s)\n", r.Status)

	if r.Uploaded {
		fmt.Fprintf(w, "  uploaded %s\n", r.CodeKey)
	} else {
		fmt.Fprintf(w, "  reused %s\n", r.CodeKey)
	}

	keys := make([]string, 0, len(r.Outputs))
	for k := range r.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", color.CyanString(k), r.Outputs[k])
	}
}
