package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/bundle"
)

type packageOptions struct {
	arch   string
	outDir string
	dir    string
}

func (o *packageOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.arch, "arch", "", "Target architecture: amd64 or arm64 (default: architecture from config)")
	cmd.Flags().StringVarP(&o.outDir, "output", "o", "dist", "Directory receiving bootstrap and function.zip")
	cmd.Flags().StringVar(&o.dir, "dir", ".", "Module root the function is built from")
}

func newPackageCmd() *cobra.Command {
	var opts packageOptions

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Build and zip the function",
		Long: `Package cross-compiles the function for Linux into a bootstrap binary
and zips it for the provided.al2023 runtime.

Examples:
    hellostack package
    hellostack package --arch arm64 -o build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.arch == "" {
				opts.arch = cfg.Architecture
			}

			artifact, err := bundle.Build(cmd.Context(), bundle.Options{
				Dir:    opts.dir,
				Arch:   opts.arch,
				OutDir: opts.outDir,
				Logger: cfg.Logger(),
			})
			if err != nil {
				return fmt.Errorf("packaging failed: %w", err)
			}

			color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "Packaged ")
			fmt.Fprintln(cmd.OutOrStdout(), artifact)
			return nil
		},
	}

	opts.register(cmd)

	return cmd
}
