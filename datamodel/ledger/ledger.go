// Package ledger defines the append-only event record the registry writes
// to. Events are grouped into blocks; only the genesis block is ever
// populated, block sealing is not implemented.
package ledger

import (
	"time"
)

// GenesisHash is the fixed hash of the genesis block.
const GenesisHash = "GENESIS"

// Transaction kinds.
const (
	TxRegisterNode = "REGISTER_NODE"
)

// Transaction is a single registry-changing event. Transactions are
// immutable once appended.
type Transaction struct {
	Kind    string `cbor:"1,keyasint" json:"kind"`
	Payload any    `cbor:"2,keyasint,omitempty" json:"payload,omitempty"`
}

type Block struct {
	Index        uint64        `cbor:"1,keyasint" json:"index"`
	PrevHash     string        `cbor:"2,keyasint,omitempty" json:"prevHash,omitempty"`
	Transactions []Transaction `cbor:"3,keyasint,omitempty" json:"transactions,omitempty"`
	Timestamp    time.Time     `cbor:"4,keyasint" json:"timestamp"`
	Validator    string        `cbor:"5,keyasint,omitempty" json:"validator,omitempty"`
	Hash         string        `cbor:"6,keyasint" json:"hash"`
}

// Ledger is an ordered chain of blocks. It performs no locking of its own;
// the owning registry serializes all access.
type Ledger struct {
	blocks []*Block
}

// New creates a ledger holding only the genesis block. The validator is
// the address of the node that created the ledger.
func New(validator string) *Ledger {
	return &Ledger{
		blocks: []*Block{
			{
				Index:     0,
				Timestamp: time.Now(),
				Validator: validator,
				Hash:      GenesisHash,
			},
		},
	}
}

// Append adds a transaction to the current block, in arrival order.
func (l *Ledger) Append(kind string, payload any) {
	blk := l.blocks[len(l.blocks)-1]
	blk.Transactions = append(blk.Transactions, Transaction{Kind: kind, Payload: payload})
}

// Blocks returns a copy of the chain. Transactions slices are copied so
// later appends do not alias into the result.
func (l *Ledger) Blocks() []Block {
	out := make([]Block, 0, len(l.blocks))
	for _, b := range l.blocks {
		cp := *b
		cp.Transactions = append([]Transaction(nil), b.Transactions...)
		out = append(out, cp)
	}
	return out
}

// Transactions returns a copy of the current block's transactions.
func (l *Ledger) Transactions() []Transaction {
	blk := l.blocks[len(l.blocks)-1]
	return append([]Transaction(nil), blk.Transactions...)
}
