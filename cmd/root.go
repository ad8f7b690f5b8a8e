package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmbotnet/dmbn/cmd/hub"
	"github.com/dmbotnet/dmbn/cmd/serve"
	"github.com/dmbotnet/dmbn/cmd/util"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dmbn",
		Short: "authenticated message hub",
		Long: fmt.Sprintf(`dmbn (v%s)

An authenticated message hub written in Go: clients connect over a
persistent transport, authenticate against a credential store and
exchange named network function invocations, log lines and files.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dmbn",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dmbn v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(hub.HubCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
