package commands

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/sync/errgroup"

	"swarmnet/config"
	"swarmnet/crypto"
	"swarmnet/datastore/leveldb"
	"swarmnet/helper/timer"
	"swarmnet/swarm/peer"
	"swarmnet/swarm/registry"
)

// RunServe starts the gossip node and blocks until the context is
// cancelled.
func RunServe(ctx context.Context, cfg *config.Config) {
	keys := cfg.Node.Keys
	if keys == nil {
		log.Fatal("No node keys in config, run 'init' first")
	}

	store, err := leveldb.New(cfg.DataStore.Path)
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	defer store.Close()

	reg := registry.New(validatorAddress(cfg))

	p, err := peer.New(cfg.Network.ListenAddress, reg, peer.Options{
		AdvertisedAddress: cfg.Node.AdvertisedAddress,
		Credential:        keys.Public,
		Bootstrap:         cfg.Network.Bootstrap,
		MaxConns:          cfg.Network.MaxConns,
		DialAttempts:      cfg.Network.DialAttempts,
	})
	if err != nil {
		log.Fatalf("Failed to create peer: %v", err)
	}

	log.Infof("I am %s, key fingerprint %s", p.Addr(), crypto.Fingerprint(keys.Public))

	if err := saveIdentity(store, keys, p.Addr()); err != nil {
		log.Fatalf("Failed to persist identity: %v", err)
	}

	wg, cctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return p.Run(cctx)
	})

	wg.Go(func() error {
		interval := &timer.Interval{
			Duration: cfg.Gossip.PingInterval,
			Jitter:   cfg.Gossip.PingJitter,
		}
		return timer.RunWithTicker(cctx, "ping", interval, func(context.Context) error {
			p.Ping()
			return nil
		})
	})

	if stale := cfg.Gossip.StaleAfter; stale > 0 {
		wg.Go(func() error {
			interval := &timer.Interval{Duration: stale, Jitter: stale / 10}
			return timer.RunWithTicker(cctx, "evict", interval, func(context.Context) error {
				reg.EvictStale(stale)
				return nil
			})
		})
	}

	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Node stopped with error: %v", err)
	}
	log.Info("Node stopped")
}

// validatorAddress picks the address recorded on the ledger's genesis
// block: the advertised address when configured, otherwise the listen
// endpoint, so the validator is never empty.
func validatorAddress(cfg *config.Config) string {
	if cfg.Node.AdvertisedAddress != "" {
		return cfg.Node.AdvertisedAddress
	}
	return cfg.Network.ListenAddress
}

// saveIdentity records who we are in the datastore: the address in clear,
// the key pair sealed to our own keys.
func saveIdentity(store *leveldb.EnvelopeStore, keys *crypto.KeyPair, address string) error {
	identity, err := json.Marshal(map[string]any{
		"address":   address,
		"publicKey": keys.Public,
	})
	if err != nil {
		return err
	}
	if err := store.Save("identity", identity, false); err != nil {
		return err
	}

	sealed, err := crypto.Encrypt(keys, keys.Public, keys.Private)
	if err != nil {
		return err
	}
	return store.Save("keys", sealed, true)
}
