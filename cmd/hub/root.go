package hub

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmbotnet/dmbn/cmd/util"
	"github.com/dmbotnet/dmbn/rpc/client"
	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/registry"
)

var (
	hubClient *client.Client

	// HubCommands represents the client command group
	HubCommands = &cobra.Command{
		Use:               "hub",
		Short:             "Talk to a dmbn hub server",
		PersistentPreRunE: setupHubClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitEnvConfig)

	// Add common connection flags to the hub command
	util.SetupClientFlags(HubCommands)

	// Add subcommands
	HubCommands.AddCommand(pingCmd)
	HubCommands.AddCommand(callCmd)
	HubCommands.AddCommand(listenCmd)
}

// setupHubClient creates the hub client from the configured flags
func setupHubClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	common.InitLoggers(config.LogLevel)

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientConnector()
	if err != nil {
		return err
	}

	hubClient = client.New(*config, t, s, registry.New())
	return nil
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure the round trip time to the hub",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pong := make(chan struct{})
		hubClient.Registry().MustRegister("pong", func(c registry.Caller, args map[string]any) error {
			close(pong)
			return nil
		})

		if err := hubClient.Connect(); err != nil {
			return err
		}
		defer hubClient.Disconnect()

		start := time.Now()
		if err := hubClient.SendNet("ping", nil); err != nil {
			return err
		}

		select {
		case <-pong:
			fmt.Printf("pong from %q after %v\n", hubClient.ServerName(), time.Since(start))
			return nil
		case <-time.After(10 * time.Second):
			return fmt.Errorf("no pong from %q within 10s", hubClient.ServerName())
		}
	},
}

var callCmd = &cobra.Command{
	Use:   "call NAME [KEY=VALUE]...",
	Short: "Invoke a network function on the hub",
	Long:  `Invoke a network function on the hub. Arguments are passed as KEY=VALUE pairs and sent as strings.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		netArgs := map[string]any{}
		for _, pair := range args[1:] {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid argument %q (expected KEY=VALUE)", pair)
			}
			netArgs[key] = value
		}

		if err := hubClient.Connect(); err != nil {
			return err
		}
		defer hubClient.Disconnect()

		if err := hubClient.SendNet(args[0], netArgs); err != nil {
			return err
		}

		// give the server a moment to answer before hanging up
		select {
		case <-hubClient.Done():
		case <-time.After(2 * time.Second):
		}
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stay connected and print everything the hub sends",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := hubClient.Connect(); err != nil {
			return err
		}
		defer hubClient.Disconnect()

		fmt.Printf("connected to %q, waiting for envelopes (ctrl-c to quit)\n", hubClient.ServerName())
		<-hubClient.Done()
		return nil
	},
}
