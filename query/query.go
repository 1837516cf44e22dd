// Package query implements a small declarative query engine over
// in-memory collections: filter, sort, group and aggregate driven by a
// descriptor. It is a sibling of the gossip core and takes no part in the
// protocol.
package query

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type Row = map[string]any

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Condition is a single field predicate. Supported ops: eq, ne, gt, gte,
// lt, lte.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Aggregate describes a reduction over rows or groups. Supported ops:
// count, sum, avg, min, max. Field is ignored for count.
type Aggregate struct {
	Op    string
	Field string
}

type Descriptor struct {
	Find      string
	Where     []Condition
	SortBy    string
	Order     Order
	GroupBy   string
	Aggregate *Aggregate
	Limit     int
}

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownOp         = errors.New("unknown operator")
)

type Engine struct {
	mu          sync.RWMutex
	collections map[string][]Row
}

func NewEngine() *Engine {
	return &Engine{collections: make(map[string][]Row)}
}

// Register installs a named collection, replacing any previous one.
func (e *Engine) Register(name string, rows []Row) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections[name] = rows
}

// Run evaluates the descriptor: filter, then group/aggregate or sort, then
// limit.
func (e *Engine) Run(d Descriptor) ([]Row, error) {
	e.mu.RLock()
	rows, ok := e.collections[d.Find]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, d.Find)
	}

	filtered, err := filter(rows, d.Where)
	if err != nil {
		return nil, err
	}

	var out []Row
	if d.GroupBy != "" || d.Aggregate != nil {
		out, err = aggregate(filtered, d.GroupBy, d.Aggregate)
		if err != nil {
			return nil, err
		}
	} else {
		out = append([]Row(nil), filtered...)
	}

	if d.SortBy != "" {
		sortRows(out, d.SortBy, d.Order)
	}

	if d.Limit > 0 && len(out) > d.Limit {
		out = out[:d.Limit]
	}
	return out, nil
}

func filter(rows []Row, conds []Condition) ([]Row, error) {
	if len(conds) == 0 {
		return rows, nil
	}
	var out []Row
	for _, row := range rows {
		keep := true
		for _, c := range conds {
			match, err := matches(row, c)
			if err != nil {
				return nil, err
			}
			if !match {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func matches(row Row, c Condition) (bool, error) {
	v, ok := row[c.Field]
	if !ok {
		return false, nil
	}
	cmp, comparable := compare(v, c.Value)
	switch c.Op {
	case "eq":
		return comparable && cmp == 0, nil
	case "ne":
		return !comparable || cmp != 0, nil
	case "gt":
		return comparable && cmp > 0, nil
	case "gte":
		return comparable && cmp >= 0, nil
	case "lt":
		return comparable && cmp < 0, nil
	case "lte":
		return comparable && cmp <= 0, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOp, c.Op)
	}
}

func aggregate(rows []Row, groupBy string, agg *Aggregate) ([]Row, error) {
	if agg == nil {
		agg = &Aggregate{Op: "count"}
	}

	groups := make(map[any][]Row)
	var order []any
	for _, row := range rows {
		key := any(nil)
		if groupBy != "" {
			key = row[groupBy]
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	var out []Row
	for _, key := range order {
		val, err := reduce(groups[key], agg)
		if err != nil {
			return nil, err
		}
		row := Row{"value": val}
		if groupBy != "" {
			row[groupBy] = key
		}
		out = append(out, row)
	}
	return out, nil
}

func reduce(rows []Row, agg *Aggregate) (any, error) {
	if agg.Op == "count" {
		return len(rows), nil
	}

	var nums []float64
	for _, row := range rows {
		if f, ok := toFloat(row[agg.Field]); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return nil, nil
	}

	switch agg.Op {
	case "sum", "avg":
		total := 0.0
		for _, f := range nums {
			total += f
		}
		if agg.Op == "avg" {
			return total / float64(len(nums)), nil
		}
		return total, nil
	case "min":
		m := nums[0]
		for _, f := range nums[1:] {
			if f < m {
				m = f
			}
		}
		return m, nil
	case "max":
		m := nums[0]
		for _, f := range nums[1:] {
			if f > m {
				m = f
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, agg.Op)
	}
}

func sortRows(rows []Row, field string, order Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		cmp, ok := compare(rows[i][field], rows[j][field])
		if !ok {
			return false
		}
		if order == Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// compare orders two values of like type. The second return is false when
// the values are not comparable.
func compare(a, b any) (int, bool) {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}

	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}

	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ab == bb:
			return 0, true
		case bb:
			return -1, true
		}
		return 1, true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
