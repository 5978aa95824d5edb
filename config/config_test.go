package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultCapabilities(t *testing.T) {
	d := NewDefaultCapabilities()
	require.Equal(t, 65535, d.MaxClientIDLength)
	require.Equal(t, uint32(math.MaxUint32), d.MaxSessionExpiryInterval)
	require.True(t, d.KeepAliveAllowZero)
	require.Equal(t, byte(2), d.MaximumQos)
	require.Equal(t, 8, d.ExtensionTaskWorkers)
}

func TestOpenConfigFileEmptyPathUsesDefaults(t *testing.T) {
	opts, err := OpenConfigFile("")
	require.NoError(t, err)
	require.NotNil(t, opts.Capabilities)
	require.Equal(t, NewDefaultCapabilities().KeepAliveMax, opts.Capabilities.KeepAliveMax)
}

func TestOpenConfigFileLoadsYAMLAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	yamlDoc := []byte(`
server:
  options:
    capabilities:
      max_client_id_length: 128
      deny_unauthenticated_connections: true
`)
	require.NoError(t, os.WriteFile(path, yamlDoc, 0o600))

	opts, err := OpenConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 128, opts.Capabilities.MaxClientIDLength)
	require.True(t, opts.Capabilities.DenyUnauthenticatedConnections)
	// Untouched fields still get the default fill-in.
	require.Equal(t, NewDefaultCapabilities().KeepAliveMax, opts.Capabilities.KeepAliveMax)
	require.Equal(t, NewDefaultCapabilities().ServerReceiveMaximum, opts.Capabilities.ServerReceiveMaximum)
}

func TestOpenConfigFileMissingFileErrors(t *testing.T) {
	_, err := OpenConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEnsureDefaultsFillsNilCapabilities(t *testing.T) {
	o := &Options{}
	o.ensureDefaults()
	require.NotNil(t, o.Capabilities)
	require.Equal(t, NewDefaultCapabilities().MaxClientIDLength, o.Capabilities.MaxClientIDLength)
}
