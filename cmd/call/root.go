package call

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	cmdUtil "github.com/ValentinKolb/planet/cmd/util"
	"github.com/ValentinKolb/planet/lib/util"
	"github.com/ValentinKolb/planet/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client
	rpcSystem *client.RPCSystem

	// CallCommands represents the system command group
	CallCommands = &cobra.Command{
		Use:                "call",
		Short:              "Call the system servant of a node",
		PersistentPreRunE:  setupSystemClient,
		PersistentPostRunE: closeSystemClient,
	}

	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Measures the round trip time to a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			rtts := make([]float64, 0, max(count, 1))
			for i := 0; i < max(count, 1); i++ {
				rtt, err := rpcSystem.Ping()
				if err != nil {
					return err
				}
				rtts = append(rtts, float64(rtt))
				fmt.Printf("pong from %s: seq=%d time=%s\n", rpcClient.Session().PeerID(), i, rtt)
			}
			if len(rtts) > 1 {
				s := util.NewStats(rtts)
				fmt.Printf("rtt min/mean/max/stddev = %s/%s/%s/%s\n",
					time.Duration(s.Min), time.Duration(s.Mean), time.Duration(s.Max), time.Duration(s.StdDeviation))
			}
			return nil
		},
	}
	echoCmd = &cobra.Command{
		Use:   "echo [value]",
		Short: "Sends a value to a node and prints the returned value (numbers are sent as long)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v any = args[0]
			if n, err := strconv.ParseInt(args[0], 10, 64); err == nil {
				v = n
			}
			resp, err := rpcSystem.Echo(v)
			if err != nil {
				return err
			}
			fmt.Printf("echo=%v (%T)\n", resp, resp)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the transport and session statistics of a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rpcSystem.Stats()
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints static information of a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcSystem.Info()
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
	logCmd = &cobra.Command{
		Use:   "log [message]",
		Short: "Writes a message to the log of a node (notification, no reply)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcSystem.Log(args[0]); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
)

func init() {
	cmdUtil.SetupRPCClientFlags(CallCommands)

	CallCommands.AddCommand(pingCmd)
	CallCommands.AddCommand(echoCmd)
	CallCommands.AddCommand(statsCmd)
	CallCommands.AddCommand(infoCmd)
	CallCommands.AddCommand(logCmd)

	pingCmd.Flags().Int("count", 1, "Number of pings to send")
}

func setupSystemClient(cmd *cobra.Command, _ []string) error {
	var err error
	if rpcClient, err = cmdUtil.DialClient(cmd); err != nil {
		return err
	}
	rpcSystem = rpcClient.System()
	return nil
}

func closeSystemClient(*cobra.Command, []string) error {
	return cmdUtil.CloseClient(rpcClient)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
