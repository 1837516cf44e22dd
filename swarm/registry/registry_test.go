package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmnet/datamodel/ledger"
	"swarmnet/datamodel/node"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := New("node-a:4100")

	created := r.Register("node-a:4100", []byte("key-a"))
	require.True(t, created)

	// Second registration is a no-op and must not refresh the credential.
	created = r.Register("node-a:4100", []byte("other-key"))
	assert.False(t, created)
	assert.Equal(t, 1, r.Len())

	info, ok := r.Get("node-a:4100")
	require.True(t, ok)
	assert.Equal(t, []byte("key-a"), info.Credential)

	// Exactly one REGISTER_NODE transaction in the ledger.
	txs := r.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TxRegisterNode, txs[0].Kind)
	assert.Equal(t, "node-a:4100", txs[0].Payload)
}

func TestTouchAdvancesLastActive(t *testing.T) {
	r := New("node-a:4100")
	r.Register("node-a:4100", node.PlaceholderCredential)

	before, ok := r.Get("node-a:4100")
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	require.True(t, r.Touch("node-a:4100"))

	after, ok := r.Get("node-a:4100")
	require.True(t, ok)
	assert.True(t, after.LastActive.After(before.LastActive))
}

func TestTouchUnknownAddressIsNoOp(t *testing.T) {
	r := New("node-a:4100")
	r.Register("node-a:4100", node.PlaceholderCredential)

	assert.False(t, r.Touch("node-x:9999"))
	assert.Equal(t, 1, r.Len())
	assert.Len(t, r.Transactions(), 1)
}

func TestSnapshotContainsAllAddresses(t *testing.T) {
	r := New("node-a:4100")
	r.Register("node-a:4100", node.PlaceholderCredential)
	r.Register("node-b:4101", node.PlaceholderCredential)
	r.Register("node-c:4102", node.PlaceholderCredential)

	snap := r.Snapshot()
	assert.ElementsMatch(t, []string{"node-a:4100", "node-b:4101", "node-c:4102"}, snap)
}

func TestEvictStale(t *testing.T) {
	r := New("node-a:4100")
	r.Register("node-a:4100", node.PlaceholderCredential)
	r.Register("node-b:4101", node.PlaceholderCredential)

	time.Sleep(20 * time.Millisecond)
	r.Touch("node-a:4100")

	evicted := r.EvictStale(10 * time.Millisecond)
	assert.Equal(t, 1, evicted)
	assert.ElementsMatch(t, []string{"node-a:4100"}, r.Snapshot())

	// A second sweep with a generous age removes nothing.
	assert.Equal(t, 0, r.EvictStale(time.Hour))
}

func TestGenesisBlockOnly(t *testing.T) {
	r := New("node-a:4100")
	r.Register("node-a:4100", node.PlaceholderCredential)
	r.Register("node-b:4101", node.PlaceholderCredential)

	blocks := r.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, ledger.GenesisHash, blocks[0].Hash)
	assert.Len(t, blocks[0].Transactions, 2)
}
