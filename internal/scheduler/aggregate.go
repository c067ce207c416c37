package scheduler

import (
	"strings"
	"time"
)

// Counts is a per-bucket tally of due cards.
type Counts struct {
	New      int
	Learning int
	Review   int
}

func (c *Counts) bump(b Bucket) {
	switch b {
	case BucketNew:
		c.New++
	case BucketLearning:
		c.Learning++
	case BucketReview:
		c.Review++
	}
}

func (c *Counts) merge(o Counts) {
	c.New += o.New
	c.Learning += o.Learning
	c.Review += o.Review
}

// Total returns the sum across all three buckets.
func (c Counts) Total() int {
	return c.New + c.Learning + c.Review
}

// DeckCounts pairs a deck's own tally with the rolled-up tally of every
// deck nested beneath it. A deck's own cards count toward its ancestors'
// Sub totals, never its own.
type DeckCounts struct {
	Self Counts
	Sub  Counts
}

// Tree is the aggregate view over a deck hierarchy. Nodes is keyed by full
// deck path, including implicit intermediate paths that no stored deck row
// backs. The empty-name root is dropped from Nodes; its rolled-up value is
// Total.
type Tree struct {
	Nodes map[string]DeckCounts
	Total Counts
}

// aggNode is one entry in the arena the aggregator builds per query.
// Holding resolved ancestor pointers up front avoids re-splitting path
// strings for every card on large deck sets.
type aggNode struct {
	counts    DeckCounts
	ancestors []string
}

// Aggregate classifies every card as of now and rolls the bucket counts up
// the `::`-delimited deck tree. Cards whose deck id matches no deck are
// ignored.
func Aggregate(decks []Deck, cards []Card, now time.Time, offset time.Duration) Tree {
	arena := make(map[string]*aggNode, len(decks))
	nameByID := make(map[int64]string, len(decks))

	ensure := func(name string) *aggNode {
		if n, ok := arena[name]; ok {
			return n
		}
		n := &aggNode{ancestors: ancestorPaths(name)}
		arena[name] = n
		return n
	}

	for _, d := range decks {
		nameByID[d.ID] = d.Name
		ensure(d.Name)
		// Intermediate path segments exist in the tree even without a deck row.
		for _, a := range ancestorPaths(d.Name) {
			ensure(a)
		}
	}

	for _, c := range cards {
		name, ok := nameByID[c.DeckID]
		if !ok {
			continue
		}
		arena[name].counts.Self.bump(Classify(c, now, offset))
	}

	var total Counts
	for _, n := range arena {
		total.merge(n.counts.Self)
		for _, a := range n.ancestors {
			arena[a].counts.Sub.merge(n.counts.Self)
		}
	}

	nodes := make(map[string]DeckCounts, len(arena))
	for name, n := range arena {
		nodes[name] = n.counts
	}
	return Tree{Nodes: nodes, Total: total}
}

// ancestorPaths returns every proper prefix path of name, excluding the
// empty root. The root's rollup is tracked separately as the global total.
func ancestorPaths(name string) []string {
	segs := strings.Split(name, PathSeparator)
	out := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], PathSeparator))
	}
	return out
}
