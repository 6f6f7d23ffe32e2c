package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/planet/cmd/util"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.NodeConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a planet node",
		Long:    `Start a planet node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is PLANET_<flag> (e.g. PLANET_CALL_TIMEOUT=15s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupTransportFlags(ServeCmd)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the node will listen (e.g. localhost:8080, /tmp/planet.sock, ...)"))

	key = "peer-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The id announced to peers (defaults to the endpoint)"))

	key = "servants"
	ServeCmd.PersistentFlags().String(key, strings.Join(server.DefaultServants, ","), cmdUtil.WrapString("Comma-separated list of built-in servants to mount (kv, lock, system)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The http address of the prometheus metrics endpoint (e.g. localhost:9100, empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the node configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse servants
	serveCmdConfig.Servants = nil
	for _, name := range strings.Split(viper.GetString("servants"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		switch name {
		case server.ServantKV, server.ServantLock, server.ServantSystem:
			serveCmdConfig.Servants = append(serveCmdConfig.Servants, name)
		default:
			return fmt.Errorf("invalid servant: %s (expected one of: %s)", name, strings.Join(server.DefaultServants, ", "))
		}
	}
	if len(serveCmdConfig.Servants) == 0 {
		return fmt.Errorf("no servants to mount")
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Network = viper.GetString("network")
	serveCmdConfig.Transport = cmdUtil.GetTransportConfig()
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport.PeerID = viper.GetString("peer-id")
	serveCmdConfig.Session = cmdUtil.GetSessionConfig()
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the planet node
func run(_ *cobra.Command, _ []string) error {
	codec, err := cmdUtil.GetCodec()
	if err != nil {
		return err
	}
	connector, err := cmdUtil.GetConnector()
	if err != nil {
		return err
	}

	n := server.NewNode(
		*serveCmdConfig,
		connector,
		codec,
	)

	return n.Serve()
}
