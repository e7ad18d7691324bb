// Command grayrules runs the conditional-rule scheduling engine.
//
//	grayrules run                       start the engine from configs/config.yaml
//	grayrules validate rules.yaml       check a rule file and list the states it uses
//	grayrules templates import lib.yaml store shared templates in the database
//	grayrules templates log             show changes made to the library
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	format     string // "text" | "json"
}

var validFormats = []string{"text", "json"}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "grayrules",
		Short:         "Conditional-rule scheduling engine",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			for _, f := range validFormats {
				if f == opts.format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configPathFromEnv(), "configuration file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newTemplatesCommand(opts))
	return cmd
}

func configPathFromEnv() string {
	if path := os.Getenv("GRAYRULES_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
