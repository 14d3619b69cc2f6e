package scheduler

import (
	"cmp"
	"slices"
	"sort"
)

// entry is one pending callback.
type entry struct {
	id       ID
	time     float64
	callback Callback
	realtime bool
}

func compareEntries(a, b entry) int {
	if c := cmp.Compare(a.time, b.time); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// queue is kept sorted by (time, id). Ids only grow, so ties fire in
// scheduling order.
type queue []entry

// push inserts e after every entry that sorts before or equal to it.
func (q *queue) push(e entry) {
	i := sort.Search(len(*q), func(i int) bool {
		return compareEntries((*q)[i], e) > 0
	})
	*q = slices.Insert(*q, i, e)
}

// popDue removes and returns the earliest entry if it is due by horizon.
func (q *queue) popDue(horizon float64) (entry, bool) {
	if len(*q) == 0 || (*q)[0].time > horizon {
		return entry{}, false
	}
	e := (*q)[0]
	*q = slices.Delete(*q, 0, 1)
	return e, true
}

// remove drops the entry with id. Returns false if it is not queued.
func (q *queue) remove(id ID) bool {
	i := slices.IndexFunc(*q, func(e entry) bool { return e.id == id })
	if i < 0 {
		return false
	}
	*q = slices.Delete(*q, i, i+1)
	return true
}
