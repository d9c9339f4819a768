// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/pkg/errors"
)

// Interface is one router attachment point: an IP address, a
// dedicated MAC address, and the link it faces.
type Interface struct {
	// ip is the interface address.
	ip IPAddress

	// link is the attached link.
	link *Link

	// mac is the interface's hardware address.
	mac MACAddress

	// name is the interface name (eth0, eth1, ...).
	name string
}

// Name returns the interface name.
func (i *Interface) Name() string { return i.name }

// IP returns the interface address.
func (i *Interface) IP() IPAddress { return i.ip }

// MAC returns the interface's hardware address.
func (i *Interface) MAC() MACAddress { return i.mac }

// Link returns the attached link.
func (i *Interface) Link() *Link { return i.link }

// Router forwards packets between networks: longest-prefix-match
// route lookup, TTL enforcement, and ARP resolution of the next hop.
// Routers do not run an ARQ engine; they deal in encapsulated packets
// and ARP traffic only.
//
// Construct using [NewRouter].
type Router struct {
	// arp resolves next-hop addresses.
	arp *ArpResolver

	// cfg holds the simulation tunables.
	cfg Config

	// logger receives the router's events.
	logger Logger

	// name is the router's topology name.
	name string

	// routes is the routing table.
	routes RouteTable

	// mu guards interfaces.
	mu sync.Mutex

	// interfaces are the attachment points, in creation order.
	interfaces []*Interface
}

// RouterOption is an option for [NewRouter].
type RouterOption func(r *Router)

// RouterOptionConfig overrides the default [Config].
func RouterOptionConfig(cfg Config) RouterOption {
	return func(r *Router) {
		r.cfg = cfg
	}
}

// RouterOptionLogger overrides the default no-op [Logger].
func RouterOptionLogger(logger Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a new [*Router] with no interfaces and an empty
// routing table.
func NewRouter(name string, options ...RouterOption) *Router {
	r := &Router{
		cfg:    DefaultConfig(),
		logger: NopLogger(),
		name:   name,
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.WithField("router", name)
	r.arp = NewArpResolver(r, r.cfg, r.logger)
	return r
}

var (
	_ Endpoint = &Router{}
	_ ArpNode  = &Router{}
)

// Name implements [Endpoint].
func (r *Router) Name() string {
	return r.name
}

// AddInterface creates an interface with the given dotted-quad
// address and mask, attaches the router to link through it, and
// installs the connected route for the interface's network.
func (r *Router) AddInterface(addr, mask string, link *Link) (*Interface, error) {
	ip, err := NewIPAddress(addr, mask)
	if err != nil {
		return nil, err
	}
	if err := link.Attach(r); err != nil {
		return nil, err
	}

	r.mu.Lock()
	iface := &Interface{
		ip:   ip,
		link: link,
		mac:  RandomMAC(),
		name: fmt.Sprintf("eth%d", len(r.interfaces)),
	}
	r.interfaces = append(r.interfaces, iface)
	r.mu.Unlock()

	r.routes.Add(RouteEntry{
		Prefix:    ip.Prefix(),
		Interface: iface.name,
		Source:    RouteConnected,
	})
	r.logger.Infof("added interface %s (%s)", iface.name, ip)
	return iface, nil
}

// RemoveInterface detaches and removes the interface owning the given
// address, dropping its connected route.
func (r *Router) RemoveInterface(addr string) error {
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		return err
	}

	r.mu.Lock()
	var removed *Interface
	for i, iface := range r.interfaces {
		if iface.ip.Addr() == parsed {
			removed = iface
			r.interfaces = append(r.interfaces[:i], r.interfaces[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if removed == nil {
		return errors.Errorf("lansim: router %s has no interface with address %s", r.name, addr)
	}
	removed.link.Detach(r)
	r.routes.Remove(removed.ip.Prefix())
	r.logger.Infof("removed interface %s", removed.name)
	return nil
}

// Interfaces returns a snapshot of the router's interfaces.
func (r *Router) Interfaces() []*Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Interface, len(r.interfaces))
	copy(out, r.interfaces)
	return out
}

// AddRoute installs a static route toward prefix. Pass the zero
// [netip.Addr] as nextHop for a direct route. The egress interface
// must exist.
func (r *Router) AddRoute(prefix netip.Prefix, nextHop netip.Addr, ifaceName string) error {
	if r.interfaceByName(ifaceName) == nil {
		return errors.Errorf("lansim: router %s has no interface %s", r.name, ifaceName)
	}
	r.routes.Add(RouteEntry{
		Prefix:    prefix.Masked(),
		NextHop:   nextHop,
		Interface: ifaceName,
		Source:    RouteStatic,
	})
	r.logger.Infof("added route %s via %s", prefix, ifaceName)
	return nil
}

// RemoveRoute deletes the route for prefix, reporting whether it was
// present.
func (r *Router) RemoveRoute(prefix netip.Prefix) bool {
	return r.routes.Remove(prefix.Masked())
}

// Routes returns a snapshot of the routing table.
func (r *Router) Routes() []RouteEntry {
	return r.routes.Entries()
}

// ArpEntries returns a snapshot of the router's ARP cache.
func (r *Router) ArpEntries() []ArpEntry {
	return r.arp.Entries()
}

// interfaceByName returns the named interface, or nil.
func (r *Router) interfaceByName(name string) *Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, iface := range r.interfaces {
		if iface.name == name {
			return iface
		}
	}
	return nil
}

// ingressInterface maps the delivering endpoint back to the interface
// whose link carried the frame. Best effort: behind a hub the mapping
// may be ambiguous and serves logging only.
func (r *Router) ingressInterface(from Endpoint) *Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, iface := range r.interfaces {
		if iface.link.HasEndpoint(from) {
			return iface
		}
	}
	return nil
}

// ownsMAC reports whether dst is one of the router's interface
// addresses.
func (r *Router) ownsMAC(dst MACAddress) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, iface := range r.interfaces {
		if iface.mac == dst {
			return true
		}
	}
	return false
}

// ReceiveFrame implements [Endpoint]: ARP frames feed the resolver,
// valid DATA frames carrying a packet enter the forwarding path,
// everything else is dropped.
func (r *Router) ReceiveFrame(frame *Frame, from Endpoint) {
	ifaceName := ""
	if in := r.ingressInterface(from); in != nil {
		ifaceName = in.Name()
	}

	switch frame.Type {
	case FrameArpRequest:
		r.arp.HandleRequest(frame, ifaceName)
		return
	case FrameArpReply:
		r.arp.HandleReply(frame, ifaceName)
		return
	case FrameData:
	default:
		return // routers do not speak ARQ
	}

	if !r.ownsMAC(frame.DstMAC) && !frame.DstMAC.IsBroadcast() {
		r.logger.Debugf("ignoring frame addressed to %s", frame.DstMAC)
		return
	}
	if !frame.IsValid() {
		r.logger.Warnf("dropping corrupted frame from %s: %v", frame.SrcMAC, ErrChecksumMismatch)
		return
	}
	if frame.Packet == nil {
		r.logger.Debugf("dropping data frame without a packet")
		return
	}
	if err := r.Forward(frame.Packet); err != nil {
		r.logger.Warnf("forwarding %s failed: %v", frame.Packet, err)
	}
}

// Forward routes one packet toward its destination:
//
// 1. Decrement the TTL; a packet whose TTL reaches zero is dropped
// with [ErrTTLExpired].
//
// 2. Longest-prefix-match lookup; no match drops the packet with
// [ErrNoRoute].
//
// 3. The ARP target is the packet's destination for direct routes and
// the entry's next hop otherwise. An unresolved target drops the
// packet with [ErrArpUnresolved]; the ARP request has been issued.
//
// 4. The packet is encapsulated in a new frame sourced from the
// egress interface and transmitted on its link.
func (r *Router) Forward(pkt *Packet) error {
	pkt.TTL--
	if pkt.TTL <= 0 {
		return errors.Wrapf(ErrTTLExpired, "%s -> %s", pkt.SrcIP, pkt.DstIP)
	}

	entry, found := r.routes.Lookup(pkt.DstIP)
	if !found {
		return errors.Wrapf(ErrNoRoute, "%s", pkt.DstIP)
	}

	target := entry.NextHop
	if entry.Direct() {
		target = pkt.DstIP
	}
	egress := r.interfaceByName(entry.Interface)
	if egress == nil {
		return errors.Errorf("lansim: route %s names missing interface %s",
			entry.Prefix, entry.Interface)
	}

	mac, resolved := r.arp.Resolve(target)
	if !resolved {
		return errors.Wrapf(ErrArpUnresolved, "%s", target)
	}

	frame := NewPacketFrame(egress.MAC(), mac, pkt)
	r.logger.Infof("forwarding %s via %s next hop %s", pkt, egress.Name(), mac)
	return egress.Link().Transmit(frame, r)
}

// ArpBindings implements [ArpNode].
func (r *Router) ArpBindings() []ArpBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ArpBinding, 0, len(r.interfaces))
	for _, iface := range r.interfaces {
		out = append(out, ArpBinding{
			IP:        iface.ip.Addr(),
			MAC:       iface.mac,
			Interface: iface.name,
		})
	}
	return out
}

// SendArpFrame implements [ArpNode]: a named interface sends on its
// own link, the empty name broadcasts on every interface.
func (r *Router) SendArpFrame(frame *Frame, iface string) {
	for _, candidate := range r.Interfaces() {
		if iface != "" && candidate.Name() != iface {
			continue
		}
		if err := candidate.Link().Transmit(frame, r); err != nil {
			r.logger.Warnf("arp frame on %s failed: %v", candidate.Name(), err)
		}
	}
}
