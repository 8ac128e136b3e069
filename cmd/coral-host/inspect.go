package main

import (
	"encoding/json"

	coral "github.com/coral-dev/coral-go"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/exports"
	"github.com/spf13/cobra"
)

// inspection is the JSON document printed by inspect.
type inspection struct {
	Type    entities.ReflectionType     `json:"type"`
	Methods []entities.MemberDescriptor `json:"methods,omitempty"`
	Fields  []entities.MemberDescriptor `json:"fields,omitempty"`
	Schema  json.RawMessage             `json:"schema,omitempty"`
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var members, schema bool

	cmd := &cobra.Command{
		Use:   "inspect <type>",
		Short: "Query a type through the exported call surface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			local, err := coral.NewLocal(coral.BuiltinCatalog(),
				coral.WithSurfaceOptions(
					exports.WithExpose(cfg.Expose...),
					exports.WithLogger(logger),
				),
			)
			if err != nil {
				return err
			}
			defer local.Close()

			var out inspection
			if out.Type, err = local.TypeOf(args[0]); err != nil {
				return err
			}
			if members {
				if out.Methods, err = local.Methods(args[0]); err != nil {
					return err
				}
				if out.Fields, err = local.Fields(args[0]); err != nil {
					return err
				}
			}
			if schema {
				text, err := local.Schema(args[0])
				if err != nil {
					return err
				}
				out.Schema = json.RawMessage(text)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVarP(&members, "members", "m", false, "Include methods and fields")
	cmd.Flags().BoolVarP(&schema, "schema", "s", false, "Include the JSON schema")
	return cmd
}
