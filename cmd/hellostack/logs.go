package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/deploy"
)

func newLogsCmd() *cobra.Command {
	var (
		since        time.Duration
		filter       string
		limit        int
		functionName string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent function logs",
		Long: `Logs prints the CloudWatch log events of the deployed function. The
function name is read from the stack outputs unless --function is set.

Examples:
    hellostack logs
    hellostack logs --since 1h --filter ERROR`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.Logger()

			awsCfg, err := loadAWSConfig(ctx, cfg)
			if err != nil {
				return err
			}

			if functionName == "" {
				functionName, err = stackFunctionName(ctx, deploy.New(awsCfg, logger), cfg.StackName)
				if err != nil {
					return err
				}
			}

			events, err := deploy.FetchLogs(ctx, cloudwatchlogs.NewFromConfig(awsCfg), functionName, time.Now().Add(-since), filter, limit)
			if err != nil {
				return err
			}
			printLogEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 10*time.Minute, "How far back to read")
	cmd.Flags().StringVar(&filter, "filter", "", "CloudWatch Logs filter pattern")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events (0 for all)")
	cmd.Flags().StringVar(&functionName, "function", "", "Function name (default: from stack outputs)")

	return cmd
}

func printLogEvents(w io.Writer, events []deploy.LogEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No log events.")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "%s %s\n", color.HiBlackString(e.Time.UTC().Format(time.RFC3339)), strings.TrimRight(e.Message, "\n"))
	}
}
