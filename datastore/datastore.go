// Package datastore defines the persistence collaborator: a key-value
// store of structured envelopes addressed by id. The gossip core itself is
// memory-only; this boundary serves the surrounding application.
package datastore

// Envelope is the persisted unit: an opaque blob and a flag telling
// whether the blob was encrypted before saving.
type Envelope struct {
	Data      []byte `cbor:"1,keyasint,omitempty"`
	Encrypted bool   `cbor:"2,keyasint,omitempty"`
}

type Store interface {
	// Save persists an envelope under id, replacing any previous value.
	Save(id string, data []byte, encrypted bool) error

	// Load returns the envelope saved under id. The second return is false
	// when the id is absent; that is not an error.
	Load(id string) (*Envelope, bool, error)

	// Keys enumerates all saved ids.
	Keys() ([]string, error)

	Close() error
}
