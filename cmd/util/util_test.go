package util

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds %d characters: %q", Wrap, line)
		}
	}
	if got := WrapString("short"); got != "short" {
		t.Errorf("WrapString(short) = %q", got)
	}
}

func TestClientConfigFromFlags(t *testing.T) {
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	cmd.PersistentFlags().String("network", "tcp", "")
	SetupRPCClientFlags(cmd)
	if err := cmd.ParseFlags([]string{"--peer=node:9000", "--call-timeout=3s", "--block-size=8", "--const-cache=2"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatalf("failed to bind flags: %v", err)
	}

	config := GetClientConfig()
	if config.Peer != "node:9000" || config.Network != "tcp" {
		t.Errorf("unexpected peer %s/%s", config.Network, config.Peer)
	}
	if config.Session.CallTimeout != 3*time.Second {
		t.Errorf("CallTimeout = %s, want 3s", config.Session.CallTimeout)
	}
	if config.Transport.BlockSize != 8*1024 {
		t.Errorf("BlockSize = %d, want %d", config.Transport.BlockSize, 8*1024)
	}
	if config.Session.ConstCacheBytes != 2*1024*1024 {
		t.Errorf("ConstCacheBytes = %d", config.Session.ConstCacheBytes)
	}
}

func TestCodecAndConnector(t *testing.T) {
	defer viper.Reset()

	for encoder, ok := range map[string]bool{"json": true, "gob": true, "xml": false} {
		viper.Set("encoder", encoder)
		if _, err := GetCodec(); (err == nil) != ok {
			t.Errorf("GetCodec(%s) error = %v", encoder, err)
		}
	}
	for network, ok := range map[string]bool{"tcp": true, "unix": true, "http": false} {
		viper.Set("network", network)
		c, err := GetConnector()
		if (err == nil) != ok {
			t.Errorf("GetConnector(%s) error = %v", network, err)
			continue
		}
		if ok && c.GetName() != network {
			t.Errorf("GetConnector(%s) = %s", network, c.GetName())
		}
	}
}
