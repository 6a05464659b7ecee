package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/config"
	"github.com/olatheander/aws-cdk-lambda-monorepo/internal/validation"
)

// newWatchCmd creates the "watch" subcommand for auto-rebuilding on config changes.
func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-synthesize when the configuration changes",
		Long: `Watch monitors the config file and the dotenv file and rebuilds the
template on every change.

The watch command:
- Re-synthesizes the stack with the new configuration
- Checks references before writing
- Debounces rapid changes to avoid excessive rebuilds

Examples:
    hellostack watch -o template.json
    hellostack watch --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "json", "Output format for build: json or yaml")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Output file for build (default: report only)")

	return cmd
}

type watchOptions struct {
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// watchedFiles returns the absolute paths of the files that feed the
// configuration.
func watchedFiles() ([]string, error) {
	configFile := globals.configFile
	if configFile == "" {
		configFile = config.DefaultFile
	}
	envFile := globals.envFile
	if envFile == "" {
		envFile = ".env"
	}

	var files []string
	for _, f := range []string{configFile, envFile} {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	return files, nil
}

// runWatch monitors the configuration files and rebuilds on changes.
func runWatch(w io.Writer, opts watchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	files, err := watchedFiles()
	if err != nil {
		return err
	}

	// Directories are watched so files created later are seen.
	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		watched[f] = true
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	for _, f := range files {
		fmt.Fprintf(w, "Watching: %s\n", f)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Fprintln(w, "Running initial build...")
	runWatchBuild(w, opts)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	fmt.Fprintln(w, "\nWatching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRelevant(event, watched) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			fmt.Fprintf(w, "\n[%s] Change detected, rebuilding...\n", time.Now().Format("15:04:05"))
			runWatchBuild(w, opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-sigChan:
			fmt.Fprintln(w, "\nStopping watch...")
			return nil
		}
	}
}

// isRelevant reports whether event changes one of the watched files.
func isRelevant(event fsnotify.Event, watched map[string]bool) bool {
	if !watched[filepath.Clean(event.Name)] {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// runWatchBuild synthesizes, checks references and writes the template.
// Failures are reported and the watch continues.
func runWatchBuild(w io.Writer, opts watchOptions) bool {
	tmpl, err := synthesize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
		return false
	}

	result, err := (&validation.Validator{SkipLint: true}).Validate(tmpl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return false
	}
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "Error: %s\n", e)
		}
		return false
	}

	data, err := renderTemplate(tmpl, opts.outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
		return false
	}

	if opts.outputFile == "" {
		fmt.Fprintln(w, "Build successful")
		fmt.Fprintf(w, "Generated %d resources\n", len(tmpl.Resources))
		return true
	}
	if err := os.WriteFile(opts.outputFile, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "Build successful, wrote %s\n", opts.outputFile)
	return true
}
