package consult

import "sync"

// ResourceGuard serializes ownership of the process-wide microphone and
// synthesis pair. At most one session holds it; acquiring while held
// evicts the previous holder through its release callback, so a stale
// session can never keep capturing after a new call starts.
type ResourceGuard struct {
	mu      sync.Mutex
	owner   string
	release func()
}

func NewResourceGuard() *ResourceGuard {
	return &ResourceGuard{}
}

// Acquire takes ownership for owner. release is invoked (outside the
// guard's lock) if a later Acquire evicts this owner.
func (g *ResourceGuard) Acquire(owner string, release func()) {
	g.mu.Lock()
	evicted := g.release
	g.owner = owner
	g.release = release
	g.mu.Unlock()
	if evicted != nil {
		evicted()
	}
}

// Release clears ownership if owner still holds it. Safe to call after
// eviction or repeatedly.
func (g *ResourceGuard) Release(owner string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner == owner {
		g.owner = ""
		g.release = nil
	}
}

// Owner reports the current holder, empty when free.
func (g *ResourceGuard) Owner() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner
}
