package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/client"
	"github.com/go-i2p/go-cbcservice/lib/config"
	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/go-i2p/go-cbcservice/lib/transport"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func TestSelftest(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runSelftest(context.Background(), &out, 2*time.Second))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, "ok"), line)
	}
}

// runCommand executes the root command with a throwaway config file.
func runCommand(t *testing.T, configYAML string, args ...string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		config.CfgFile = ""
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(append([]string{"--config", path}, args...))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestConfigCommandPrintsEffectiveValues(t *testing.T) {
	out := runCommand(t, "service:\n  capacity: 3\n", "config")

	var cfg config.ConfigDefaults
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 3, cfg.Service.Capacity)
	assert.Equal(t, 64, cfg.Service.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.Client.Timeout)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	defer func() { config.CfgFile = "" }()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  capacity: 0\n"), 0o600))

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--config", path, "config"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Service.Capacity")
}

func TestHashSecretCommand(t *testing.T) {
	out := runCommand(t, "", "hash-secret", "hunter2")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "$2"))
}

func TestDaemonServesSocketAndMetrics(t *testing.T) {
	cfg := config.Defaults()
	cfg.Service.Capacity = 2
	cfg.Transport.Network = "tcp"
	cfg.Transport.Address = "127.0.0.1:0"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = "127.0.0.1:0"

	d, err := newDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx) }()

	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()
	conn, err := client.Dial(rctx, "tcp", d.server.Addr().String(), nil)
	require.NoError(t, err)
	c := client.New(conn)
	defer c.Close()

	var key [32]byte
	var iv [16]byte
	s, err := c.Init(rctx, key, iv)
	require.NoError(t, err)
	_, err = c.Init(rctx, key, iv)
	require.NoError(t, err)
	_, err = c.Init(rctx, key, iv)
	assert.ErrorIs(t, err, protocol.ErrNoSessionSlotAvailable)
	require.NoError(t, s.Close(rctx))

	resp, err := http.Get("http://" + d.metricsAddr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "cbcservice_active_sessions 1")
	assert.Contains(t, string(body), `cbcservice_requests_total{operation="Init",status="NoSessionSlotAvailable"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.False(t, d.server.IsRunning())
}

func TestDaemonReloadSwapsSecret(t *testing.T) {
	oldHash, err := bcrypt.GenerateFromPassword([]byte("old secret"), bcrypt.MinCost)
	require.NoError(t, err)
	newHash, err := bcrypt.GenerateFromPassword([]byte("new secret"), bcrypt.MinCost)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSecret := func(hash []byte) {
		body := "transport:\n  secret_hash: \"" + string(hash) + "\"\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	writeSecret(oldHash)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg := config.Defaults()
	cfg.Transport.Network = "tcp"
	cfg.Transport.Address = "127.0.0.1:0"
	cfg.Transport.SecretHash = string(oldHash)

	d, err := newDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx) }()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	}()

	addr := d.server.Addr().String()
	dial := func(secret string) error {
		dctx, dcancel := context.WithTimeout(ctx, 5*time.Second)
		defer dcancel()
		conn, err := client.Dial(dctx, "tcp", addr, []byte(secret))
		if err != nil {
			return err
		}
		return conn.Close()
	}

	require.NoError(t, dial("old secret"))

	writeSecret(newHash)
	d.reload()
	assert.Equal(t, string(newHash), d.cfg.Transport.SecretHash)

	assert.ErrorIs(t, dial("old secret"), transport.ErrHandshakeRejected)
	assert.NoError(t, dial("new secret"))

	writeSecret([]byte("not a bcrypt hash"))
	d.reload()
	assert.Equal(t, string(newHash), d.cfg.Transport.SecretHash, "a bad hash keeps the current secret")
	assert.NoError(t, dial("new secret"))
}
