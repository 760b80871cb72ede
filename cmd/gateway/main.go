// Command gateway runs the payment gateway API, its queue workers, the
// webhook retry scheduler and the operational one-shots.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	testMode   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Payment gateway API and async pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "gateway.yaml", "YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the process environment")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "log output (console, json, pretty)")
	root.PersistentFlags().BoolVar(&flags.testMode, "test-mode", false, "force deterministic test processing")

	root.AddCommand(
		serveCmd(flags),
		workerCmd(flags),
		schedulerCmd(flags),
		reconcileCmd(flags),
		migrateCmd(flags),
		seedCmd(flags),
		purgeCmd(flags),
	)
	return root
}
