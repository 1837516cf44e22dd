package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmnet/crypto"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")

	cfg := NewEmptyConfig(file)
	cfg.Node.AdvertisedAddress = "node-a:4100"
	cfg.Network.Bootstrap = []string{"node-b:4100", "node-c:4100"}
	cfg.Network.MaxConns = 16
	cfg.Gossip.StaleAfter = time.Minute

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	cfg.Node.Keys = keys

	require.NoError(t, cfg.Save())

	loaded, err := NewConfigFromFile(file)
	require.NoError(t, err)

	assert.Equal(t, "node-a:4100", loaded.Node.AdvertisedAddress)
	assert.Equal(t, cfg.Network.Bootstrap, loaded.Network.Bootstrap)
	assert.Equal(t, 16, loaded.Network.MaxConns)
	assert.Equal(t, time.Minute, loaded.Gossip.StaleAfter)
	assert.Equal(t, 5*time.Second, loaded.Gossip.PingInterval)
	require.NotNil(t, loaded.Node.Keys)
	assert.Equal(t, keys.Public, loaded.Node.Keys.Public)
	assert.Equal(t, keys.Private, loaded.Node.Keys.Private)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
