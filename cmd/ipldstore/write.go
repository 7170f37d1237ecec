package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newPutCmd(flags *rootFlags) *cobra.Command {
	var startRoot string

	cmd := &cobra.Command{
		Use:   "put <key> [file]",
		Short: "Store a value under a key and print the new root",
		Long:  "put writes a value (from a file, or stdin when no file is given) under the key,\nfreezes the session and prints the resulting root. With --root the session starts\nfrom an existing root so the other keys are carried over.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value []byte
			var err error
			if len(args) == 2 {
				value, err = os.ReadFile(args[1])
			} else {
				value, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			m, err := flags.mapper()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if startRoot != "" {
				if err := m.SetRootString(ctx, startRoot); err != nil {
					return err
				}
			}
			if err := m.Set(ctx, args[0], value); err != nil {
				return err
			}
			root, err := m.FreezeString(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
	cmd.Flags().StringVar(&startRoot, "root", "", "existing root to start the session from")
	return cmd
}

func newRmCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <root> <key>",
		Short: "Remove a key and print the new root",
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
			if err := m.Delete(args[1]); err != nil {
				return err
			}
			root, err := m.FreezeString(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}
