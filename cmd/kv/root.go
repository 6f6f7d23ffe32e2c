package kv

import (
	"github.com/ValentinKolb/planet/cmd/util"
	"github.com/ValentinKolb/planet/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client
	rpcStore  *client.RPCStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setECmd)
	KeyValueCommands.AddCommand(setEIfUnsetCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(exprCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(uploadCmd)
	KeyValueCommands.AddCommand(downloadCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects to the node and creates the store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	var err error
	if rpcClient, err = util.DialClient(cmd); err != nil {
		return err
	}
	rpcStore = rpcClient.Store()
	return nil
}

func closeKVClient(*cobra.Command, []string) error {
	return util.CloseClient(rpcClient)
}
