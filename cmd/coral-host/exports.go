package main

import (
	"fmt"

	coral "github.com/coral-dev/coral-go"
	"github.com/coral-dev/coral-go/exports"
	"github.com/spf13/cobra"
)

func newExportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List the functions the bridge exports to native code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, e := range exports.Table() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), e.Signature()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bridge version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "coral-host", coral.Version)
		},
	}
}
