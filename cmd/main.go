package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RequestCriteria/internal/config"
	"RequestCriteria/internal/logger"
)

type rootOptions struct {
	debug     bool
	modelsDir string
	envFile   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "criteria",
		Short:         "Compile datatable requests into SQL and serve them over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.modelsDir, "models", "", "directory of entity definitions (overrides MODELS_DIR)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newCompileCmd(opts))
	return root
}

// load reads configuration and applies the persistent flags over it.
func (o *rootOptions) load() *config.Config {
	cfg := config.LoadConfig(o.envFile)
	if o.modelsDir != "" {
		cfg.ModelsDir = o.modelsDir
	}
	if o.debug {
		cfg.Log.Debug = true
	}
	logger.SetDebug(cfg.Log.Debug)
	return cfg
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Error("command_failed", logger.Fields{"error": err.Error()})
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
