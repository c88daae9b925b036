package memory

import "sync"

// recordGuards hands out one exclusive guard per record key. Entries are
// reference counted and dropped once no caller holds or waits on them.
type recordGuards struct {
	mu     sync.Mutex
	guards map[string]*recordGuard
}

type recordGuard struct {
	mu   sync.Mutex
	refs int
}

func newRecordGuards() *recordGuards {
	return &recordGuards{guards: make(map[string]*recordGuard)}
}

func (g *recordGuards) lock(key string) func() {
	g.mu.Lock()
	guard, ok := g.guards[key]
	if !ok {
		guard = &recordGuard{}
		g.guards[key] = guard
	}
	guard.refs++
	g.mu.Unlock()

	guard.mu.Lock()
	return func() {
		guard.mu.Unlock()
		g.mu.Lock()
		guard.refs--
		if guard.refs == 0 {
			delete(g.guards, key)
		}
		g.mu.Unlock()
	}
}
