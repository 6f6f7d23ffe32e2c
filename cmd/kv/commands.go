package kv

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := rpcStore.Set(key, []byte(value)); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	setECmd = &cobra.Command{
		Use:   "setE [key] [value] [expireIn] [deleteIn]",
		Short: "Sets the value for a key with expiration and deletion time (durations like 30s, 0 = never)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			expireIn, deleteIn, err := parseTTL(args[2], args[3])
			if err != nil {
				return err
			}
			if err := rpcStore.SetE(args[0], []byte(args[1]), expireIn, deleteIn); err != nil {
				return err
			}
			fmt.Println("setE successfully")
			return nil
		},
	}
	setEIfUnsetCmd = &cobra.Command{
		Use:   "setEIfUnset [key] [value] [expireIn] [deleteIn]",
		Short: "Sets the value for a key with expiration and deletion time if the key is not already set",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			expireIn, deleteIn, err := parseTTL(args[2], args[3])
			if err != nil {
				return err
			}
			if err := rpcStore.SetEIfUnset(args[0], []byte(args[1]), expireIn, deleteIn); err != nil {
				return err
			}
			fmt.Println("setEIfUnset successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok, err := rpcStore.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	exprCmd = &cobra.Command{
		Use:   "expr [key]",
		Short: "Expires the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Expire(args[0]); err != nil {
				return err
			}
			fmt.Println("expire successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := rpcStore.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	uploadCmd = &cobra.Command{
		Use:   "upload [key] [file]",
		Short: "Streams the content of a file (- for stdin) into a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := os.Stdin
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			n, err := rpcStore.Upload(args[0], in)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, uploaded=%d bytes\n", args[0], n)
			return nil
		},
	}
	downloadCmd = &cobra.Command{
		Use:   "download [key] [file]",
		Short: "Streams the value of a key into a file (- for stdout)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, ok, err := rpcStore.Download(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %s not found", args[0])
			}
			defer rc.Close()

			out := os.Stdout
			if args[1] != "-" {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			n, err := io.Copy(out, rc)
			if err != nil {
				return err
			}
			if out != os.Stdout {
				fmt.Printf("key=%s, downloaded=%d bytes\n", args[0], n)
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints metadata of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := rpcStore.Info()
			fmt.Printf("keys=%d, scheduled=%d\n", info.Keys, info.Scheduled)
			return nil
		},
	}
)

func parseTTL(exp, del string) (expireIn, deleteIn time.Duration, err error) {
	if expireIn, err = time.ParseDuration(exp); err != nil {
		return 0, 0, fmt.Errorf("expireIn must be a duration: %w", err)
	}
	if deleteIn, err = time.ParseDuration(del); err != nil {
		return 0, 0, fmt.Errorf("deleteIn must be a duration: %w", err)
	}
	return expireIn, deleteIn, nil
}
