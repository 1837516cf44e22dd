package config

import (
	"encoding/json"
	"os"
	"time"

	"swarmnet/crypto"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Config holds the node configuration, persisted as a JSON file.
type Config struct {
	configFile string

	Node struct {
		// AdvertisedAddress is how other nodes reach this one. Empty means
		// use the listener's bound address.
		AdvertisedAddress string          `json:"advertisedAddress,omitempty"`
		Keys              *crypto.KeyPair `json:"keys,omitempty"`
	} `json:"node"`

	Network struct {
		ListenAddress string   `json:"listenAddress"`
		Bootstrap     []string `json:"bootstrap,omitempty"`
		MaxConns      int      `json:"maxConns,omitempty"`     // 0 = unbounded
		DialAttempts  uint     `json:"dialAttempts,omitempty"` // 0 = default
	} `json:"network"`

	Gossip struct {
		PingInterval time.Duration `json:"pingInterval"`
		PingJitter   time.Duration `json:"pingJitter"`
		// StaleAfter enables registry eviction of nodes not heard from for
		// this long. 0 keeps the registry unbounded.
		StaleAfter time.Duration `json:"staleAfter,omitempty"`
	} `json:"gossip"`

	DataStore struct {
		Path string `json:"path"`
	} `json:"datastore"`
}

// NewEmptyConfig generates a new configuration with default settings.
func NewEmptyConfig(configFile string) *Config {
	cfg := &Config{}

	cfg.configFile = configFile
	cfg.Network.ListenAddress = "0.0.0.0:4100"
	cfg.Gossip.PingInterval = 5 * time.Second
	cfg.Gossip.PingJitter = 500 * time.Millisecond
	cfg.DataStore.Path = "/tmp/swarmnet/datastore"

	return cfg
}

func NewConfigFromFile(configFile string) (*Config, error) {
	cfg := NewEmptyConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save() error {
	log.Infof("Saving config to %s", c.configFile)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0600)
}

func (c *Config) Load() error {
	log.Infof("Loading config from %s", c.configFile)
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}
