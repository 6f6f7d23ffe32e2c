package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/planet/rpc/client"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/transport/base"
	"github.com/ValentinKolb/planet/rpc/transport/tcp"
	"github.com/ValentinKolb/planet/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files and binds PLANET_<FLAG> environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("planet")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupTransportFlags adds the connection flags shared by clients and the server
func SetupTransportFlags(cmd *cobra.Command) {
	key := "connect-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultConnectTimeout, WrapString("Bounds dialing and the connection handshake"))

	key = "write-wait-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultWriteWaitTimeout, WrapString("How long a single blocked socket write may take before the connection is closed"))

	key = "heartbeat-interval"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Interval of the heartbeat inspector (0 = disabled)"))

	key = "max-idle"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Close connections without data for this long (0 = never)"))

	key = "workers"
	cmd.PersistentFlags().Int(key, common.DefaultWorkers, WrapString("Size of the execution pool running handlers"))

	key = "block-size"
	cmd.PersistentFlags().Int(key, common.DefaultBlockSize/1024, WrapString("Maximum size of a channel block (in KB)"))

	key = "buffer-count"
	cmd.PersistentFlags().Int(key, common.DefaultBufferCount, WrapString("Blocks buffered per input channel, senders may have one more in flight"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp)"))

	key = "call-timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Deadline of a remote call (0 = wait forever)"))

	key = "stream-wait-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultStreamWaitTimeout, WrapString("How long to wait for a stream that has not arrived yet"))

	key = "const-cache"
	cmd.PersistentFlags().Int(key, common.DefaultConstCacheBytes/(1024*1024), WrapString("Capacity of the per session cache of const results (in MB)"))
}

// SetupRPCClientFlags adds the flags of commands talking to a node
func SetupRPCClientFlags(cmd *cobra.Command) {
	SetupTransportFlags(cmd)

	key := "peer"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the planet node (host:port for tcp, socket path for unix)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// GetTransportConfig reads the transport configuration from viper
func GetTransportConfig() common.TransportConfig {
	return common.TransportConfig{
		ConnectTimeout:    viper.GetDuration("connect-timeout"),
		WriteWaitTimeout:  viper.GetDuration("write-wait-timeout"),
		HeartbeatInterval: viper.GetDuration("heartbeat-interval"),
		MaxIdle:           viper.GetDuration("max-idle"),
		Workers:           viper.GetInt("workers"),
		BlockSize:         viper.GetInt("block-size") * 1024,
		BufferCount:       viper.GetInt("buffer-count"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		},
	}
}

// GetSessionConfig reads the session configuration from viper
func GetSessionConfig() common.SessionConfig {
	return common.SessionConfig{
		CallTimeout:       viper.GetDuration("call-timeout"),
		StreamWaitTimeout: viper.GetDuration("stream-wait-timeout"),
		ConstCacheBytes:   viper.GetInt("const-cache") * 1024 * 1024,
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Network:   viper.GetString("network"),
		Peer:      viper.GetString("peer"),
		Transport: GetTransportConfig(),
		Session:   GetSessionConfig(),
	}
}

// GetCodec creates the value codec based on configuration
func GetCodec() (serializer.IValueCodec, error) {
	switch viper.GetString("encoder") {
	case "json":
		return serializer.NewBinaryCodec(serializer.NewJSONEncoder()), nil
	case "gob":
		return serializer.NewBinaryCodec(serializer.NewGOBEncoder()), nil
	default:
		return nil, fmt.Errorf("invalid encoder %s", viper.GetString("encoder"))
	}
}

// GetConnector creates the connector based on configuration
func GetConnector() (base.IConnector, error) {
	switch viper.GetString("network") {
	case "tcp":
		return tcp.NewConnector(), nil
	case "unix":
		return unix.NewConnector(), nil
	default:
		return nil, fmt.Errorf("invalid network %s", viper.GetString("network"))
	}
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// DialClient binds the flags of cmd and connects to the configured peer.
// It is used as PersistentPreRunE of the client command groups.
func DialClient(cmd *cobra.Command) (*client.Client, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	codec, err := GetCodec()
	if err != nil {
		return nil, err
	}
	connector, err := GetConnector()
	if err != nil {
		return nil, err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	config := GetClientConfig()
	ctx, cancel := context.WithTimeout(parent, config.Transport.WithDefaults().ConnectTimeout)
	defer cancel()
	return client.Dial(ctx, *config, connector, codec)
}

// CloseClient closes c if it was opened
func CloseClient(c *client.Client) error {
	if c == nil {
		return nil
	}
	return c.Close()
}
