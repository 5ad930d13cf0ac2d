package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCurrentConfigDefaultsRoundTrip verifies that every key written by
// setDefaults() is read back by CurrentConfig().
func TestCurrentConfigDefaultsRoundTrip(t *testing.T) {
	viper.Reset()
	setDefaults()

	cfg := CurrentConfig()
	defaults := Defaults()

	if cfg != defaults {
		t.Errorf("CurrentConfig() = %+v, want %+v", cfg, defaults)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	d := Defaults()
	require.NoError(t, Validate(d))

	assert.Equal(t, 16, d.Service.Capacity)
	assert.Equal(t, 0, d.Service.MaxMessageSize)
	assert.Equal(t, "unix", d.Transport.Network)
	assert.True(t, strings.HasSuffix(d.Transport.Address, filepath.Join(CBCSERVICE_BASE_DIR, "cbc.sock")))
	assert.Equal(t, 2*time.Second, d.Client.Timeout)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigDefaults)
		want   string
	}{
		{"zero capacity", func(c *ConfigDefaults) { c.Service.Capacity = 0 }, "Service.Capacity"},
		{"capacity above handle range", func(c *ConfigDefaults) { c.Service.Capacity = 65537 }, "Service.Capacity"},
		{"max size inside header", func(c *ConfigDefaults) { c.Service.MaxMessageSize = 5 }, "Service.MaxMessageSize"},
		{"empty queue", func(c *ConfigDefaults) { c.Service.QueueSize = 0 }, "Service.QueueSize"},
		{"bad network", func(c *ConfigDefaults) { c.Transport.Network = "udp" }, "Transport.Network"},
		{"no address", func(c *ConfigDefaults) { c.Transport.Address = "" }, "Transport.Address"},
		{"no connections", func(c *ConfigDefaults) { c.Transport.MaxConnections = 0 }, "Transport.MaxConnections"},
		{"negative rate", func(c *ConfigDefaults) { c.Transport.RateLimit = -1 }, "Transport.RateLimit"},
		{"zero burst", func(c *ConfigDefaults) { c.Transport.RateBurst = 0 }, "Transport.RateBurst"},
		{"metrics without address", func(c *ConfigDefaults) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, "Metrics.Address"},
		{"zero timeout", func(c *ConfigDefaults) { c.Client.Timeout = 0 }, "Client.Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSkipsDisabledTransport(t *testing.T) {
	cfg := Defaults()
	cfg.Transport.Enabled = false
	cfg.Transport.Address = ""
	assert.NoError(t, Validate(cfg))
}

func TestInitConfigReadsFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "cbc.yaml")
	data := "service:\n  capacity: 4\ntransport:\n  network: tcp\n  address: 127.0.0.1:9999\nclient:\n  timeout: 500ms\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	CfgFile = path
	defer func() { CfgFile = "" }()
	require.NoError(t, InitConfig())

	cfg := CurrentConfig()
	assert.Equal(t, 4, cfg.Service.Capacity)
	assert.Equal(t, "tcp", cfg.Transport.Network)
	assert.Equal(t, "127.0.0.1:9999", cfg.Transport.Address)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.Timeout)
	assert.Equal(t, 64, cfg.Service.QueueSize, "unset keys keep their defaults")
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	CfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	defer func() { CfgFile = "" }()
	assert.Error(t, InitConfig())
}

func TestCreateSecureDirectoryAndRestrictFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateSecureDirectory(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(SecureDirPermissions), info.Mode().Perm())

	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	require.NoError(t, RestrictFile(file))
	info, err = os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(SecureFilePermissions), info.Mode().Perm())

	assert.NoError(t, RestrictFile(filepath.Join(dir, "missing")))
	assert.Error(t, RestrictFile(dir))
}
