package commands

import (
	"context"

	"swarmnet/config"
	"swarmnet/crypto"
	"swarmnet/datastore/leveldb"
	"swarmnet/query"
)

// RunInfo prints the node identity and a summary of the datastore.
func RunInfo(ctx context.Context, cfg *config.Config) {
	if cfg.Node.Keys != nil {
		log.Infof("Key fingerprint: %s", crypto.Fingerprint(cfg.Node.Keys.Public))
	} else {
		log.Warn("No node keys in config")
	}
	log.Infof("Listen address: %s", cfg.Network.ListenAddress)
	log.Infof("Bootstrap: %v", cfg.Network.Bootstrap)

	store, err := leveldb.New(cfg.DataStore.Path)
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	defer store.Close()

	ids, err := store.Keys()
	if err != nil {
		log.Fatalf("Failed to enumerate datastore: %v", err)
	}

	rows := make([]query.Row, 0, len(ids))
	for _, id := range ids {
		env, ok, err := store.Load(id)
		if err != nil {
			log.Fatalf("Failed to load %q: %v", id, err)
		}
		if !ok {
			continue
		}
		rows = append(rows, query.Row{"id": id, "encrypted": env.Encrypted, "bytes": len(env.Data)})
	}

	engine := query.NewEngine()
	engine.Register("envelopes", rows)

	listed, err := engine.Run(query.Descriptor{Find: "envelopes", SortBy: "id"})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	log.Infof("Datastore: %d envelopes", len(listed))
	for _, row := range listed {
		log.Infof("  %s: %d bytes, encrypted=%t", row["id"], row["bytes"], row["encrypted"])
	}

	grouped, err := engine.Run(query.Descriptor{Find: "envelopes", GroupBy: "encrypted", SortBy: "encrypted"})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	for _, row := range grouped {
		log.Infof("  encrypted=%v: %v envelopes", row["encrypted"], row["value"])
	}
}
