package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	coral "github.com/coral-dev/coral-go"
	"github.com/coral-dev/coral-go/exports"
	"github.com/coral-dev/coral-go/host"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "run <module.wasm>",
		Short: "Instantiate a native module and call its entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read module: %w", err)
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			surface, err := exports.NewSurface(coral.BuiltinCatalog(),
				exports.WithExpose(cfg.Expose...),
				exports.WithLogger(logger),
				exports.WithMiddleware(exports.LoggingMiddleware(logger)),
			)
			if err != nil {
				return err
			}
			defer surface.Close()

			ctx := cmd.Context()
			executor, err := host.NewExecutor(ctx, surface,
				host.WithConfig(*cfg),
				host.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
			)
			if err != nil {
				return err
			}
			defer executor.Close(ctx)

			native, err := executor.Load(ctx, name, wasm)
			if err != nil {
				return err
			}
			logger.Info("running native host", "host", native.Name(), "entry_point", cfg.EntryPoint)
			return native.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Module instance name (default: file name)")
	return cmd
}
