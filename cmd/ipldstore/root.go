package main

import (
	"github.com/spf13/cobra"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/config"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/store"
)

type rootFlags struct {
	api     string
	gateway string
	noPin   bool
	debug   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "ipldstore",
		Short:         "Key/value sessions over an IPFS daemon",
		Long:          "ipldstore reads and writes chunked-array key/value data against a local IPFS daemon.\nSessions are frozen into a single content identifier that later invocations reopen.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.debug {
				store.SetupLogger(true)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.api, "api", "", "daemon RPC endpoint (default http://127.0.0.1:5001)")
	pf.StringVar(&flags.gateway, "gateway", "", "gateway endpoint used as a read fallback")
	pf.BoolVar(&flags.noPin, "no-pin", false, "do not pin written blocks")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newGetCmd(flags),
		newLsCmd(flags),
		newPutCmd(flags),
		newRmCmd(flags),
		newExportCmd(flags),
		newImportCmd(flags),
	)
	return cmd
}

func (f *rootFlags) mapper() (*store.Mapper, error) {
	cfg := &config.Config{
		APIAddr:     f.api,
		GatewayAddr: f.gateway,
		UseGateway:  f.gateway != "",
		NoPin:       f.noPin,
		Debug:       f.debug,
	}
	return store.NewMapper(cfg)
}
