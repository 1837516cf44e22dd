package node

import (
	"time"
)

// Record holds what the registry knows about a single node. The node's
// address is the registry key and is not repeated inside the record.
type Record struct {
	Credential []byte    `cbor:"1,keyasint,omitempty" json:"credential,omitempty"` // Opaque credential blob (public key or placeholder)
	LastActive time.Time `cbor:"2,keyasint,omitempty" json:"lastActive"`           // Last time we heard from this node
}

// Info is a Record together with its address, used when enumerating the
// registry for display and queries.
type Info struct {
	Address    string    `cbor:"1,keyasint,omitempty" json:"address"`
	Credential []byte    `cbor:"2,keyasint,omitempty" json:"credential,omitempty"`
	LastActive time.Time `cbor:"3,keyasint,omitempty" json:"lastActive"`
}

// PlaceholderCredential marks a node learned through gossip. Announcements
// carry addresses only, so merged entries have no authentic credential.
var PlaceholderCredential = []byte("unverified")
