package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmbotnet/dmbn/rpc/common"
	"github.com/dmbotnet/dmbn/rpc/serializer"
	"github.com/dmbotnet/dmbn/rpc/transport"
	"github.com/dmbotnet/dmbn/rpc/transport/tcp"
	"github.com/dmbotnet/dmbn/rpc/transport/unix"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds common hub connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:5000", WrapString("The address of the hub server (host:port, or a socket path for the unix transport)"))

	key = "login"
	cmd.PersistentFlags().String(key, "", WrapString("The login to authenticate with"))

	key = "password"
	cmd.PersistentFlags().String(key, "", WrapString("The password to authenticate with"))

	key = "register"
	cmd.PersistentFlags().Bool(key, false, WrapString("Register a new account instead of logging in"))

	key = "timeout"
	cmd.PersistentFlags().Int64(key, 10, WrapString("Handshake timeout in seconds"))

	key = "download-dir"
	cmd.PersistentFlags().String(key, "downloads", WrapString("Directory for files the server sends"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warning, error)"))
}

// InitEnvConfig initializes configuration from environment variables
func InitEnvConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dmbn")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:      viper.GetString("endpoint"),
		Login:         viper.GetString("login"),
		Password:      viper.GetString("password"),
		Register:      viper.GetBool("register"),
		TimeoutSecond: viper.GetInt64("timeout"),
		DownloadDir:   viper.GetString("download-dir"),
		LogLevel:      viper.GetString("log-level"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IEnvelopeSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetServerConnector creates a server connector based on configuration
func GetServerConnector() (transport.IServerConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerConnector(), nil
	case "unix":
		return unix.NewUnixServerConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetClientConnector creates a client connector based on configuration
func GetClientConnector() (transport.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientConnector(), nil
	case "unix":
		return unix.NewUnixClientConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
