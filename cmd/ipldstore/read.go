package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGetCmd(flags *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <root> <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.mapper()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := m.SetRootString(ctx, args[0]); err != nil {
				return err
			}
			data, err := m.Get(ctx, args[1])
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, data, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the value to a file instead of stdout")
	return cmd
}

func newLsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <root>",
		Short: "List the keys under a root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.mapper()
			if err != nil {
				return err
			}
			if err := m.SetRootString(cmd.Context(), args[0]); err != nil {
				return err
			}
			for _, k := range m.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
