// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ArpBinding is one (IP, MAC, interface) triple a node answers ARP
// requests for.
type ArpBinding struct {
	// IP is the owned address.
	IP netip.Addr

	// MAC is the hardware address bound to IP.
	MAC MACAddress

	// Interface names the interface carrying the binding. Empty for
	// single-homed devices.
	Interface string
}

// ArpNode is the node an [*ArpResolver] serves: it exposes the node's
// own address bindings and puts ARP frames on the wire.
type ArpNode interface {
	// ArpBindings returns the node's owned (IP, MAC, interface) triples.
	ArpBindings() []ArpBinding

	// SendArpFrame transmits an ARP frame. An empty iface means every
	// connected link.
	SendArpFrame(frame *Frame, iface string)
}

// ArpEntry is one resolved (IP, MAC) pair in the cache.
type ArpEntry struct {
	// IP is the resolved address.
	IP netip.Addr

	// MAC is the hardware address IP resolves to.
	MAC MACAddress

	// Interface names the interface the entry was learned on.
	Interface string

	// Timestamp is when the entry was inserted or last refreshed.
	Timestamp time.Time

	// Static marks entries that never expire and are never evicted.
	Static bool
}

// ArpResolver is a per-node IP-to-MAC cache with expiry, backed by the
// request/reply protocol carried as frames.
//
// Construct using [NewArpResolver].
type ArpResolver struct {
	// logger receives the resolver's events.
	logger Logger

	// maxSize caps the cache; the oldest dynamic entry is evicted.
	maxSize int

	// node is the served node.
	node ArpNode

	// now returns the current time; injectable for tests.
	now func() time.Time

	// timeout is the dynamic-entry lifetime.
	timeout time.Duration

	// mu guards entries.
	mu sync.Mutex

	// entries is the cache, keyed by IP.
	entries map[netip.Addr]ArpEntry
}

// ArpOption is an option for [NewArpResolver].
type ArpOption func(r *ArpResolver)

// ArpOptionClock overrides the resolver's time source.
func ArpOptionClock(now func() time.Time) ArpOption {
	return func(r *ArpResolver) {
		r.now = now
	}
}

// NewArpResolver creates a new [*ArpResolver] serving node, with the
// entry lifetime and cache capacity taken from cfg.
func NewArpResolver(node ArpNode, cfg Config, logger Logger, options ...ArpOption) *ArpResolver {
	r := &ArpResolver{
		logger:  logger,
		maxSize: cfg.ArpTableSize,
		node:    node,
		now:     time.Now,
		timeout: cfg.ArpTimeout,
		entries: make(map[netip.Addr]ArpEntry),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Resolve returns the MAC address for target. On a cache miss it
// broadcasts an ARP request from every binding and reports false
// without blocking: frame delivery is synchronous on in-process
// links, so the reply may already have landed by the time the
// post-broadcast lookup runs; otherwise the caller decides whether to
// drop or retry later.
func (r *ArpResolver) Resolve(target netip.Addr) (MACAddress, bool) {
	if mac, ok := r.lookup(target); ok {
		return mac, true
	}

	r.logger.Infof("arp miss for %s, broadcasting request", target)
	for _, b := range r.node.ArpBindings() {
		payload := fmt.Sprintf("%s|%s|%s", b.IP, b.MAC, target)
		request := NewFrame(b.MAC, BroadcastMAC, []byte(payload), 0, FrameArpRequest)
		r.node.SendArpFrame(request, b.Interface)
	}

	return r.lookup(target)
}

// lookup is the cache-only half of [*ArpResolver.Resolve]: it expires
// stale dynamic entries and refreshes the timestamp of live ones.
func (r *ArpResolver) lookup(target netip.Addr) (MACAddress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, found := r.entries[target]
	if !found {
		return MACAddress{}, false
	}
	now := r.now()
	if !entry.Static {
		if now.Sub(entry.Timestamp) >= r.timeout {
			delete(r.entries, target)
			r.logger.Debugf("arp entry for %s expired", target)
			return MACAddress{}, false
		}
		entry.Timestamp = now
		r.entries[target] = entry
	}
	return entry.MAC, true
}

// AddStatic installs a static entry, exempt from expiry and eviction.
func (r *ArpResolver) AddStatic(ip netip.Addr, mac MACAddress, iface string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(ArpEntry{
		IP:        ip,
		MAC:       mac,
		Interface: iface,
		Timestamp: r.now(),
		Static:    true,
	})
}

// HandleRequest processes an inbound ARP request frame received on
// iface. When the target IP is one of the node's own addresses, the
// requester's mapping is learned and a unicast reply goes back out of
// the owning interface.
func (r *ArpResolver) HandleRequest(frame *Frame, iface string) {
	requesterIP, requesterMAC, target, err := parseArpRequest(frame.Payload)
	if err != nil {
		r.logger.Warnf("discarding arp request: %v", err)
		return
	}

	var binding *ArpBinding
	for _, b := range r.node.ArpBindings() {
		if b.IP == target {
			binding = &b
			break
		}
	}
	if binding == nil {
		return // not ours
	}

	r.mu.Lock()
	r.insertLocked(ArpEntry{
		IP:        requesterIP,
		MAC:       requesterMAC,
		Interface: iface,
		Timestamp: r.now(),
	})
	r.mu.Unlock()

	payload := fmt.Sprintf("%s|%s", binding.IP, binding.MAC)
	reply := NewFrame(binding.MAC, requesterMAC, []byte(payload), 0, FrameArpReply)
	r.logger.Infof("answering arp request for %s from %s", target, requesterIP)
	r.node.SendArpFrame(reply, binding.Interface)
}

// HandleReply processes an inbound ARP reply frame received on iface,
// inserting or updating the sender's mapping.
func (r *ArpResolver) HandleReply(frame *Frame, iface string) {
	senderIP, senderMAC, err := parseArpReply(frame.Payload)
	if err != nil {
		r.logger.Warnf("discarding arp reply: %v", err)
		return
	}
	r.mu.Lock()
	r.insertLocked(ArpEntry{
		IP:        senderIP,
		MAC:       senderMAC,
		Interface: iface,
		Timestamp: r.now(),
	})
	r.mu.Unlock()
	r.logger.Infof("learned %s -> %s", senderIP, senderMAC)
}

// insertLocked adds or updates an entry, evicting the oldest dynamic
// entry when the cache is full. A dynamic update never demotes a
// static entry. Caller holds mu.
func (r *ArpResolver) insertLocked(entry ArpEntry) {
	if existing, found := r.entries[entry.IP]; found {
		if existing.Static && !entry.Static {
			return
		}
		r.entries[entry.IP] = entry
		return
	}

	if len(r.entries) >= r.maxSize {
		var oldest netip.Addr
		var oldestAt time.Time
		for ip, e := range r.entries {
			if e.Static {
				continue
			}
			if !oldest.IsValid() || e.Timestamp.Before(oldestAt) {
				oldest, oldestAt = ip, e.Timestamp
			}
		}
		if !oldest.IsValid() {
			r.logger.Warnf("arp cache full of static entries, dropping %s", entry.IP)
			return
		}
		delete(r.entries, oldest)
		r.logger.Debugf("evicted oldest arp entry %s", oldest)
	}

	r.entries[entry.IP] = entry
}

// Entries returns a point-in-time snapshot of the live cache entries,
// sorted by IP. Expired entries are omitted but not removed: the
// snapshot never mutates resolver state.
func (r *ArpResolver) Entries() []ArpEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]ArpEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Static && now.Sub(e.Timestamp) >= r.timeout {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IP.Less(out[j].IP)
	})
	return out
}

// parseArpRequest decodes "requesterIP|requesterMAC|targetIP".
func parseArpRequest(payload []byte) (netip.Addr, MACAddress, netip.Addr, error) {
	fields := strings.Split(string(payload), "|")
	if len(fields) != 3 {
		return netip.Addr{}, MACAddress{}, netip.Addr{},
			errors.Wrapf(ErrMalformedControlFrame, "arp request %q", payload)
	}
	requesterIP, err := netip.ParseAddr(fields[0])
	if err != nil {
		return netip.Addr{}, MACAddress{}, netip.Addr{},
			errors.Wrapf(ErrMalformedControlFrame, "arp request %q: %v", payload, err)
	}
	requesterMAC, err := ParseMAC(fields[1])
	if err != nil {
		return netip.Addr{}, MACAddress{}, netip.Addr{},
			errors.Wrapf(ErrMalformedControlFrame, "arp request %q: %v", payload, err)
	}
	target, err := netip.ParseAddr(fields[2])
	if err != nil {
		return netip.Addr{}, MACAddress{}, netip.Addr{},
			errors.Wrapf(ErrMalformedControlFrame, "arp request %q: %v", payload, err)
	}
	return requesterIP, requesterMAC, target, nil
}

// parseArpReply decodes "senderIP|senderMAC".
func parseArpReply(payload []byte) (netip.Addr, MACAddress, error) {
	fields := strings.Split(string(payload), "|")
	if len(fields) != 2 {
		return netip.Addr{}, MACAddress{},
			errors.Wrapf(ErrMalformedControlFrame, "arp reply %q", payload)
	}
	senderIP, err := netip.ParseAddr(fields[0])
	if err != nil {
		return netip.Addr{}, MACAddress{},
			errors.Wrapf(ErrMalformedControlFrame, "arp reply %q: %v", payload, err)
	}
	senderMAC, err := ParseMAC(fields[1])
	if err != nil {
		return netip.Addr{}, MACAddress{},
			errors.Wrapf(ErrMalformedControlFrame, "arp reply %q: %v", payload, err)
	}
	return senderIP, senderMAC, nil
}
