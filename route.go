// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"net/netip"
	"sync"
	"time"
)

// RouteSource tags how a route entered the table.
type RouteSource uint8

// Enumerate the route sources.
const (
	// RouteStatic marks operator-installed routes.
	RouteStatic RouteSource = iota + 1

	// RouteConnected marks routes derived from interface addresses.
	RouteConnected
)

// String implements [fmt.Stringer].
func (s RouteSource) String() string {
	switch s {
	case RouteStatic:
		return "STATIC"
	case RouteConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// RouteEntry is one row of a [*RouteTable].
type RouteEntry struct {
	// Prefix is the destination network.
	Prefix netip.Prefix

	// NextHop is the gateway address. The zero value is the "direct"
	// sentinel: the destination is on the connected network itself.
	NextHop netip.Addr

	// Interface names the egress interface.
	Interface string

	// Metric orders otherwise equal routes for display; lookup ignores
	// it.
	Metric int

	// Timestamp is when the entry was installed.
	Timestamp time.Time

	// Source tags how the route entered the table.
	Source RouteSource
}

// Direct reports whether the entry uses the "direct" sentinel.
func (e RouteEntry) Direct() bool {
	return !e.NextHop.IsValid()
}

// RouteTable is an ordered routing table with longest-prefix-match
// lookup. The table keeps at most one entry per destination prefix;
// lookup ties on prefix length resolve by insertion order (first
// match wins), which keeps behavior reproducible across runs.
//
// The zero value is ready to use.
type RouteTable struct {
	mu      sync.RWMutex
	entries []RouteEntry
}

// Add installs a route. Adding a route for an already present prefix
// replaces the old entry in place, preserving its insertion rank.
func (t *RouteTable) Add(entry RouteEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].Prefix == entry.Prefix {
			t.entries[i] = entry
			return
		}
	}
	t.entries = append(t.entries, entry)
}

// Remove deletes the route for the given prefix, reporting whether an
// entry was present.
func (t *RouteTable) Remove(prefix netip.Prefix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].Prefix == prefix {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup returns the entry whose prefix contains dst with the longest
// prefix length. Ties resolve to the earliest-inserted entry.
func (t *RouteTable) Lookup(dst netip.Addr) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best RouteEntry
	bestBits := -1
	for _, e := range t.entries {
		if e.Prefix.Contains(dst) && e.Prefix.Bits() > bestBits {
			best, bestBits = e, e.Prefix.Bits()
		}
	}
	return best, bestBits >= 0
}

// Entries returns a point-in-time copy of the table in insertion
// order.
func (t *RouteTable) Entries() []RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RouteEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of installed routes.
func (t *RouteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
