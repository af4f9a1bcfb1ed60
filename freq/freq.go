// Package freq counts key occurrences and orders distinct keys by
// descending frequency.
package freq

import (
	"sort"
	"strings"

	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
)

// Table maps each distinct key to its number of occurrences. It also
// remembers the order in which keys were first seen.
type Table struct {
	Counts map[uint64]int
	order  []uint64
}

// Count builds a Table over keys in one pass.
func Count(keys []uint64) *Table {
	t := &Table{Counts: make(map[uint64]int)}
	for _, k := range keys {
		c := t.Counts[k]
		if c == 0 {
			t.order = append(t.order, k)
		}
		t.Counts[k] = c + 1
	}
	return t
}

// Len is the number of distinct keys.
func (t *Table) Len() int {
	return len(t.order)
}

// TieBreak reports whether key a should rank ahead of key b when both
// occur equally often. A TieBreak that never returns true keeps
// first-seen order.
type TieBreak func(a, b uint64) bool

// AscendingKey ranks smaller keys first. This is the default.
func AscendingKey(a, b uint64) bool { return a < b }

// DescendingKey ranks larger keys first.
func DescendingKey(a, b uint64) bool { return a > b }

// FirstSeen ranks keys in the order they first appeared.
func FirstSeen(a, b uint64) bool { return false }

// ParseTieBreak maps a tie-break name to its comparator.
func ParseTieBreak(name string) (TieBreak, error) {
	switch strings.ToLower(name) {
	case "", "ascending":
		return AscendingKey, nil
	case "descending":
		return DescendingKey, nil
	case "first-seen":
		return FirstSeen, nil
	}
	return nil, errors.Wrapf(skewtools.ErrInvalidParameter, "unknown tie-break '%s' (must be ascending, descending or first-seen)", name)
}

// Rank returns the distinct keys ordered by descending count, with equal
// counts ordered by less. A nil less means AscendingKey.
func (t *Table) Rank(less TieBreak) []uint64 {
	if less == nil {
		less = AscendingKey
	}
	ranked := make([]uint64, len(t.order))
	copy(ranked, t.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := t.Counts[ranked[i]], t.Counts[ranked[j]]
		if ci != cj {
			return ci > cj
		}
		return less(ranked[i], ranked[j])
	})
	return ranked
}

// Entry is one key with its count.
type Entry struct {
	Key   uint64
	Count int
}

// Top returns the k most frequent keys in rank order.
func (t *Table) Top(k int, less TieBreak) []Entry {
	ranked := t.Rank(less)
	if k < 0 {
		k = 0
	}
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	out := make([]Entry, len(ranked))
	for i, key := range ranked {
		out[i] = Entry{Key: key, Count: t.Counts[key]}
	}
	return out
}
