package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/car"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <root> [file]",
		Short: "Export the DAG under a root as a CAR archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := cidutil.Parse(args[0])
			if err != nil {
				return err
			}

			m, err := flags.mapper()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 2 {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := car.Export(cmd.Context(), m.Store(), root, w)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d blocks to %s\n", n, args[1])
			}
			return nil
		},
	}
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a CAR archive and print its roots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			m, err := flags.mapper()
			if err != nil {
				return err
			}
			roots, err := car.Import(cmd.Context(), m.Store(), r)
			if err != nil {
				return err
			}
			for _, c := range roots {
				fmt.Fprintln(cmd.OutOrStdout(), cidutil.MustFormat(c))
			}
			return nil
		},
	}
}
