package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/dmbotnet/dmbn/cmd/util"
	"github.com/dmbotnet/dmbn/lib/userstore"
	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/registry"
	"github.com/dmbotnet/dmbn/rpc/server"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dmbn hub server",
		Long:    `Start the dmbn hub server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DMBN_<flag> (e.g. DMBN_MAX_CLIENTS=100)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitEnvConfig)

	// add flags
	key := "name"
	ServeCmd.PersistentFlags().String(key, "Dev_Server", cmdUtil.WrapString("Name of the server, announced to every client that completes the handshake"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:5000", cmdUtil.WrapString("The address on which the server will listen (host:port, or a socket path for the unix transport)"))

	key = "db-path"
	ServeCmd.PersistentFlags().String(key, "users.db", cmdUtil.WrapString("Path of the SQLite credential database"))

	key = "owner-password"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Base password of the owner account, required on the first start against a fresh database"))

	key = "base-access"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of base access flags for new accounts. Format: FLAG=BOOL (e.g. 'chat=true,admin=false')"))

	key = "allow-registration"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether unknown logins may register a new account during the handshake"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Handshake timeout in seconds. Connections that do not authenticate within this window are dropped"))

	key = "max-clients"
	ServeCmd.PersistentFlags().Int(key, common.MaxClientsUnlimited, cmdUtil.WrapString(fmt.Sprintf("Maximum number of simultaneous authenticated connections, %d for unlimited", common.MaxClientsUnlimited)))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address for the Prometheus metrics endpoint (e.g. 'localhost:9090'). Disabled when empty"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warning, error)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for accepted connections (only for tcp transport)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for accepted connections (in seconds, only for tcp transport)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for accepted connections (in seconds, only for tcp transport)"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket write buffer (in KB, 0 for the OS default)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket read buffer (in KB, 0 for the OS default)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.ServerName = viper.GetString("name")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.AllowRegistration = viper.GetBool("allow-registration")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxClients = viper.GetInt("max-clients")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	serveCmdConfig.Store = common.StoreConf{
		Path:              viper.GetString("db-path"),
		OwnerBasePassword: viper.GetString("owner-password"),
		BaseAccess:        map[string]bool{},
	}

	// parse base access flags
	if flags := viper.GetString("base-access"); flags != "" {
		for _, entry := range strings.Split(flags, ",") {
			parts := strings.Split(entry, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid base access format: %s (expected FLAG=BOOL)", entry)
			}
			granted, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
			if err != nil {
				return fmt.Errorf("invalid base access value %s: %v", parts[1], err)
			}
			serveCmdConfig.Store.BaseAccess[strings.TrimSpace(parts[0])] = granted
		}
	}

	serveCmdConfig.Socket = common.SocketConf{
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
	}

	return serveCmdConfig.Validate()
}

// run starts the dmbn hub server
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	// parse the serializer
	ser, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// parse the transport
	connector, err := cmdUtil.GetServerConnector()
	if err != nil {
		return err
	}

	reg := registry.New()
	reg.MustRegister("ping", func(c registry.Caller, args map[string]any) error {
		return c.SendEnvelope(common.NewNetRequest("pong", nil))
	})

	serv := server.NewServer(
		*serveCmdConfig,
		connector,
		ser,
		userstore.NewSQLiteStore(),
		reg,
	)

	if err := serv.Setup(); err != nil {
		return err
	}

	fmt.Println(serveCmdConfig.String())

	// take the server down on SIGINT / SIGTERM
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		_ = serv.Stop()
	}()

	if serveCmdConfig.MetricsEndpoint != "" {
		serveMetrics(serv, serveCmdConfig.MetricsEndpoint)
	}

	return serv.Serve()
}

// serveMetrics exposes the process metrics in Prometheus text format
func serveMetrics(serv *server.Server, endpoint string) {
	metrics.NewGauge("dmbn_active_connections", func() float64 {
		return float64(serv.ClientCount())
	})

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		if err := http.ListenAndServe(endpoint, mux); err != nil {
			fmt.Printf("metrics endpoint failed: %v\n", err)
		}
	}()
}
