package trap

import (
	"sync"

	"go.uber.org/zap"
)

type subscription struct {
	o  Observer
	id uint64
}

type siteKey struct {
	origin Origin
	reason Reason
}

// Registry is the append-only trap-site table of one compilation unit.
type Registry struct {
	index     map[siteKey]SiteID
	sites     []Site
	observers []subscription
	nextSub   uint64
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[siteKey]SiteID),
		sites: make([]Site, 0, 64),
	}
}

// Register returns the site for (reason, origin), adding it if it is new.
func (r *Registry) Register(reason Reason, origin Origin) SiteID {
	key := siteKey{origin: origin, reason: reason}

	r.mu.Lock()
	if id, ok := r.index[key]; ok {
		r.mu.Unlock()
		return id
	}
	site := Site{
		ID:     SiteID(len(r.sites) + 1),
		Reason: reason,
		Origin: origin,
	}
	r.sites = append(r.sites, site)
	r.index[key] = site.ID
	r.mu.Unlock()

	Logger().Debug("trap site registered",
		zap.Uint32("id", uint32(site.ID)),
		zap.Stringer("reason", reason),
		zap.Stringer("origin", origin))

	r.notify(site)
	return site.ID
}

// Lookup returns the site registered under id.
func (r *Registry) Lookup(id SiteID) (Site, bool) {
	if id == 0 {
		return Site{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := int(id) - 1
	if idx >= len(r.sites) {
		return Site{}, false
	}
	return r.sites[idx], true
}

// Diagnose returns the site for id with its user-facing message.
func (r *Registry) Diagnose(id SiteID) (Site, string, bool) {
	site, ok := r.Lookup(id)
	if !ok {
		return Site{}, "", false
	}
	return site, Describe(site.Reason), true
}

// Sites returns a copy of all sites in registration order.
func (r *Registry) Sites() []Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Len returns the number of registered sites.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sites)
}

// Count returns the number of sites registered with reason.
func (r *Registry) Count(reason Reason) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sites {
		if s.Reason == reason {
			n++
		}
	}
	return n
}

// Reset clears the registry for the next compilation unit. Observers stay subscribed.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sites = r.sites[:0]
	clear(r.index)
}

// Subscribe adds an observer for newly registered sites and returns the
// function that removes it. Calling the returned function twice is harmless.
func (r *Registry) Subscribe(o Observer) (unsubscribe func()) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.observers = append(r.observers, subscription{o: o, id: id})
	return func() { r.unsubscribe(id) }
}

func (r *Registry) unsubscribe(id uint64) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, sub := range r.observers {
		if sub.id == id {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(s Site) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, sub := range r.observers {
		sub.o.OnSiteRegistered(s)
	}
}
