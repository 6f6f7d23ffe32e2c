package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/planet/cmd/call"
	"github.com/ValentinKolb/planet/cmd/kv"
	"github.com/ValentinKolb/planet/cmd/lock"
	"github.com/ValentinKolb/planet/cmd/serve"
	"github.com/ValentinKolb/planet/cmd/util"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/transport/http"
	"github.com/spf13/cobra"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "planet",
		Short: "peer-to-peer remote object runtime",
		Long: fmt.Sprintf(`planet (v%s)

A peer-to-peer remote object runtime written in Go. Every peer can
serve objects and call objects of its peers over multiplexed,
flow-controlled connections.`, common.Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of planet",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("planet v%s\n", common.Version)
		},
	}

	// metricsCmd prints the prometheus page of a node
	metricsCmd = &cobra.Command{
		Use:   "metrics [endpoint]",
		Short: "Print the metrics of a node",
		Long:  "Print the metrics of a node started with --metrics-endpoint. The endpoint is host:port or a full URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			body, err := http.FetchMetrics(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(body)
			return err
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(call.CallCommands)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(metricsCmd)

	// Add Flags
	key := "encoder"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("encoder for VALUE objects (json, gob). All peers must use the same"))
	key = "network"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("network to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
