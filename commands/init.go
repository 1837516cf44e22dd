package commands

import (
	"context"

	"swarmnet/config"
	"swarmnet/crypto"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// RunInit writes a default configuration with a freshly generated key
// pair.
func RunInit(ctx context.Context, cfg *config.Config) {
	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		log.Fatalf("Failed to generate key pair: %v", err)
	}
	cfg.Node.Keys = keys

	if err := cfg.Save(); err != nil {
		log.Fatalf("Failed to save config: %v", err)
	}

	log.Infof("Initialized node, key fingerprint %s", crypto.Fingerprint(keys.Public))
}
