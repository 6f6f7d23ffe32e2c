package lock

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ValentinKolb/planet/cmd/util"
	"github.com/ValentinKolb/planet/lib/lockmgr"
	"github.com/ValentinKolb/planet/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient      *client.Client
	rpcLockMgr     lockmgr.ILockManager
	acquireTimeout time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:                "lock",
		Short:              "Perform lock operations",
		PersistentPreRunE:  setupLockClient,
		PersistentPostRunE: closeLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and owner ID. The owner ID is the hex string returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Add flags specific to acquire
	acquireCmd.Flags().DurationVar(&acquireTimeout, "lock-timeout", 30*time.Second, "Lock timeout (0 for no timeout)")
}

// setupLockClient connects to the node and creates the lock manager client
func setupLockClient(cmd *cobra.Command, _ []string) error {
	var err error
	if rpcClient, err = util.DialClient(cmd); err != nil {
		return err
	}
	rpcLockMgr = rpcClient.Locks()
	return nil
}

func closeLockClient(*cobra.Command, []string) error {
	return util.CloseClient(rpcClient)
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	key := args[0]

	// Attempt to acquire the lock
	acquired, ownerID, err := rpcLockMgr.AcquireLock(key, acquireTimeout)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}

	// Convert owner ID to hex string for display
	fmt.Printf("acquired=true, ownerId=%s\n", hex.EncodeToString(ownerID))

	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	key := args[0]

	// Convert hex string owner ID back to bytes
	ownerID, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid owner ID format: %w", err)
	}

	released, err := rpcLockMgr.ReleaseLock(key, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	fmt.Printf("released=%v\n", released)

	return nil
}
