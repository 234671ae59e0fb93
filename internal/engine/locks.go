package engine

import (
	"fmt"
	"sort"
	"sync"
)

// lockTable hands out one mutex per entity key so that operations touching
// disjoint agents and deals proceed independently. Multi-entity operations
// acquire their whole lock set in sorted key order, which rules out deadlock
// between concurrent callers.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	return m
}

// acquire locks every key (deduplicated, sorted) and returns the matching
// release function. Release order is the reverse of acquisition.
func (t *lockTable) acquire(keys ...string) (release func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		m := t.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func agentKey(identity string) string {
	return "agent/" + identity
}

func dealKey(id uint64) string {
	return fmt.Sprintf("deal/%d", id)
}
