// Command hellostack synthesizes, checks, serves and deploys the hello API
// stack.
//
// Usage:
//
//	hellostack build              Print the CloudFormation template
//	hellostack validate           Check references and cfn-lint rules
//	hellostack lint               Check the stack definition source
//	hellostack serve              Run the API locally on the handler
//	hellostack deploy             Package the function and deploy the stack
//	hellostack version            Show version
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/config"
)

type globalOptions struct {
	configFile string
	envFile    string
	noColor    bool
}

var globals globalOptions

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hellostack",
		Short: "Build and deploy the hello API stack",
		Long: `hellostack owns the hello API stack: a VPC-attached Lambda function
behind GET /hello on an API Gateway REST API.

The stack is declared in Go and synthesized into CloudFormation:

    hellostack build -f yaml

Run it locally against the in-process handler:

    hellostack serve
    curl 'http://127.0.0.1:3000/hello?name=Ann'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if globals.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&globals.configFile, "config", "", "Config file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&globals.envFile, "env-file", "", "Dotenv file (default: .env)")
	rootCmd.PersistentFlags().BoolVar(&globals.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newBuildCmd(),
		newListCmd(),
		newGraphCmd(),
		newDiffCmd(),
		newValidateCmd(),
		newLintCmd(),
		newServeCmd(),
		newWatchCmd(),
		newPackageCmd(),
		newDeployCmd(),
		newLogsCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig reads the configuration selected by the global flags.
func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		File:   globals.configFile,
		DotEnv: globals.envFile,
	})
}
