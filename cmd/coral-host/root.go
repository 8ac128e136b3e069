package main

import (
	"fmt"
	"log/slog"

	"github.com/coral-dev/coral-go/application/config"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/host"
	corallog "github.com/coral-dev/coral-go/log"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	vars       map[string]string
	configPath string
	logLevel   string
	expose     []string
	env        bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "coral-host",
		Short:         "Run and inspect the coral interop bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to the bridge configuration (YAML)")
	flags.StringToStringVar(&opts.vars, "var", nil, "Template variable for the configuration (key=value)")
	flags.BoolVar(&opts.env, "env", false, "Expose the environment to configuration templates")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	flags.StringSliceVar(&opts.expose, "expose", nil, "Override the configured exposure patterns")

	cmd.AddCommand(
		newRunCmd(opts),
		newInspectCmd(opts),
		newExportsCmd(),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration, applies flag overrides and installs the
// default logger.
func (o *globalOptions) load(cmd *cobra.Command) (*entities.Config, *slog.Logger, error) {
	loader := host.NewLoader(host.WithEnvironment(o.env))

	vars := make(map[string]any, len(o.vars))
	for k, v := range o.vars {
		vars[k] = v
	}

	var (
		cfg *entities.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = loader.LoadFile(o.configPath, vars)
	} else {
		cfg, err = loader.LoadConfig(nil, vars)
	}
	if err != nil {
		return nil, nil, err
	}

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if len(o.expose) > 0 {
		cfg.Expose = o.expose
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid flags: %w", err)
	}

	level, err := corallog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := corallog.SetDefault(
		corallog.WithOutput(cmd.ErrOrStderr()),
		corallog.WithLevel(level),
	)
	return cfg, logger, nil
}
