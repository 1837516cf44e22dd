// Package protocol defines the two gossip message kinds exchanged between
// peers. One CBOR-encoded envelope is sent per frame; the protocol has no
// acknowledgements and relies on idempotent merge semantics on receipt.
package protocol

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindList announces the sender's entire known address set.
	KindList Kind = "LIST"
	// KindPing carries the sender's own address as a liveness signal.
	KindPing Kind = "PING"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrEmptyNodes  = errors.New("message carries no addresses")
)

type Envelope struct {
	Kind  Kind     `cbor:"1,keyasint"`
	Nodes []string `cbor:"2,keyasint,omitempty"`
}

// NewAnnounce builds a LIST envelope carrying the full address set.
func NewAnnounce(nodes []string) *Envelope {
	return &Envelope{Kind: KindList, Nodes: nodes}
}

// NewPing builds a PING envelope naming the sender's own address.
func NewPing(self string) *Envelope {
	return &Envelope{Kind: KindPing, Nodes: []string{self}}
}

// Validate reports whether the envelope is well-formed for its kind.
func (e *Envelope) Validate() error {
	switch e.Kind {
	case KindList:
		if len(e.Nodes) == 0 {
			return ErrEmptyNodes
		}
	case KindPing:
		if len(e.Nodes) != 1 {
			return fmt.Errorf("ping must carry exactly one address, got %d", len(e.Nodes))
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(e.Kind))
	}
	return nil
}
