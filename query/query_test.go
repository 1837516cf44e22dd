package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodesEngine() *Engine {
	e := NewEngine()
	e.Register("nodes", []Row{
		{"address": "node-a:4100", "region": "eu", "lastActive": time.Unix(100, 0), "conns": 4},
		{"address": "node-b:4100", "region": "us", "lastActive": time.Unix(300, 0), "conns": 2},
		{"address": "node-c:4100", "region": "eu", "lastActive": time.Unix(200, 0), "conns": 7},
		{"address": "node-d:4100", "region": "us", "lastActive": time.Unix(50, 0), "conns": 1},
	})
	return e
}

func TestFindAll(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{Find: "nodes"})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestUnknownCollection(t *testing.T) {
	_, err := nodesEngine().Run(Descriptor{Find: "ghosts"})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestWhereAndSort(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{
		Find:   "nodes",
		Where:  []Condition{{Field: "region", Op: "eq", Value: "eu"}},
		SortBy: "conns",
		Order:  Desc,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "node-c:4100", rows[0]["address"])
	assert.Equal(t, "node-a:4100", rows[1]["address"])
}

func TestWhereOnTime(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{
		Find:  "nodes",
		Where: []Condition{{Field: "lastActive", Op: "gte", Value: time.Unix(200, 0)}},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestLimit(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{Find: "nodes", SortBy: "address", Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "node-a:4100", rows[0]["address"])
}

func TestGroupByCount(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{
		Find:    "nodes",
		GroupBy: "region",
		SortBy:  "region",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "eu", rows[0]["region"])
	assert.Equal(t, 2, rows[0]["value"])
	assert.Equal(t, "us", rows[1]["region"])
	assert.Equal(t, 2, rows[1]["value"])
}

func TestGroupByAggregate(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{
		Find:      "nodes",
		GroupBy:   "region",
		Aggregate: &Aggregate{Op: "max", Field: "conns"},
		SortBy:    "region",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 7.0, rows[0]["value"])
	assert.Equal(t, 2.0, rows[1]["value"])
}

func TestAggregateWithoutGroup(t *testing.T) {
	rows, err := nodesEngine().Run(Descriptor{
		Find:      "nodes",
		Aggregate: &Aggregate{Op: "sum", Field: "conns"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 14.0, rows[0]["value"])
}

func TestUnknownOperator(t *testing.T) {
	_, err := nodesEngine().Run(Descriptor{
		Find:  "nodes",
		Where: []Condition{{Field: "region", Op: "like", Value: "e%"}},
	})
	assert.ErrorIs(t, err, ErrUnknownOp)
}
