// Package registry implements the authoritative in-memory table of known
// nodes together with the event ledger that records every change to it.
// Both structures sit behind a single mutex, held only across discrete
// updates and reads, never across I/O.
package registry

import (
	"sync"
	"time"

	"swarmnet/datamodel/ledger"
	"swarmnet/datamodel/node"

	log "github.com/sirupsen/logrus"
)

type Registry struct {
	mu     sync.Mutex
	nodes  map[string]*node.Record
	ledger *ledger.Ledger
}

// New creates an empty registry. The validator address is recorded on the
// ledger's genesis block.
func New(validator string) *Registry {
	return &Registry{
		nodes:  make(map[string]*node.Record),
		ledger: ledger.New(validator),
	}
}

// Register adds an address to the registry and appends a REGISTER_NODE
// transaction to the ledger. Registration is idempotent: a known address
// is left untouched (the credential is not refreshed) and no transaction
// is written. Returns true iff the entry was created.
func (r *Registry) Register(address string, credential []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[address]; ok {
		return false
	}

	r.nodes[address] = &node.Record{
		Credential: credential,
		LastActive: time.Now(),
	}
	r.ledger.Append(ledger.TxRegisterNode, address)

	log.Debugf("registry: registered %s (%d known)", address, len(r.nodes))
	return true
}

// Touch advances the address's last-active time. An unknown address is a
// silent no-op. Returns true iff the address was known.
func (r *Registry) Touch(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.nodes[address]
	if !ok {
		return false
	}
	rec.LastActive = time.Now()
	return true
}

// Snapshot returns all known addresses. Callers must not depend on the
// ordering.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.nodes))
	for addr := range r.nodes {
		out = append(out, addr)
	}
	return out
}

// Get returns the record for an address, if known.
func (r *Registry) Get(address string) (node.Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.nodes[address]
	if !ok {
		return node.Info{}, false
	}
	return node.Info{Address: address, Credential: rec.Credential, LastActive: rec.LastActive}, true
}

// Records returns a copy of every registry entry.
func (r *Registry) Records() []node.Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]node.Info, 0, len(r.nodes))
	for addr, rec := range r.nodes {
		out = append(out, node.Info{Address: addr, Credential: rec.Credential, LastActive: rec.LastActive})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// EvictStale removes entries whose last-active time is older than maxAge.
// Nothing calls this unless eviction is explicitly configured; the default
// registry never forgets a node. Returns the number of evicted entries.
func (r *Registry) EvictStale(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	evicted := 0
	for addr, rec := range r.nodes {
		if rec.LastActive.Before(cutoff) {
			delete(r.nodes, addr)
			evicted++
		}
	}
	if evicted > 0 {
		log.Infof("registry: evicted %d stale nodes (%d remain)", evicted, len(r.nodes))
	}
	return evicted
}

// Blocks returns a copy of the ledger chain.
func (r *Registry) Blocks() []ledger.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Blocks()
}

// Transactions returns a copy of the current block's transactions.
func (r *Registry) Transactions() []ledger.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Transactions()
}
