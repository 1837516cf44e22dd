package ledger

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisBlock(t *testing.T) {
	l := New("node-a:4100")

	blocks := l.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, uint64(0), blocks[0].Index)
	assert.Equal(t, GenesisHash, blocks[0].Hash)
	assert.Empty(t, blocks[0].PrevHash)
	assert.Equal(t, "node-a:4100", blocks[0].Validator)
	assert.Empty(t, blocks[0].Transactions)
}

func TestAppendPreservesArrivalOrder(t *testing.T) {
	l := New("node-a:4100")

	l.Append(TxRegisterNode, "node-a:4100")
	l.Append(TxRegisterNode, "node-b:4101")
	l.Append(TxRegisterNode, "node-c:4102")

	txs := l.Transactions()
	require.Len(t, txs, 3)
	assert.Equal(t, "node-a:4100", txs[0].Payload)
	assert.Equal(t, "node-b:4101", txs[1].Payload)
	assert.Equal(t, "node-c:4102", txs[2].Payload)
	for _, tx := range txs {
		assert.Equal(t, TxRegisterNode, tx.Kind)
	}
}

func TestBlocksReturnsCopy(t *testing.T) {
	l := New("node-a:4100")
	l.Append(TxRegisterNode, "node-a:4100")

	before := l.Blocks()
	l.Append(TxRegisterNode, "node-b:4101")

	require.Len(t, before[0].Transactions, 1)
	require.Len(t, l.Transactions(), 2)
}

func TestBlockMarshallUnmarshall(t *testing.T) {
	l := New("node-a:4100")
	l.Append(TxRegisterNode, "node-b:4101")
	blk := l.Blocks()[0]

	enc, err := cbor.Marshal(&blk)
	require.NoError(t, err)

	var out Block
	require.NoError(t, cbor.Unmarshal(enc, &out))
	assert.Equal(t, blk.Hash, out.Hash)
	assert.Equal(t, blk.Validator, out.Validator)
	require.Len(t, out.Transactions, 1)
	assert.Equal(t, TxRegisterNode, out.Transactions[0].Kind)
}
