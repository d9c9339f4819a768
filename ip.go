// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"

	"github.com/bassosimone/runtimex"
	"github.com/pkg/errors"
)

// IPAddress is an IPv4 address plus its subnet mask. The network and
// broadcast addresses derive from the two. Immutable once constructed.
//
// Construct using [NewIPAddress] or [MustIPAddress].
type IPAddress struct {
	// addr is the host address.
	addr netip.Addr

	// maskBits is the prefix length implied by the subnet mask.
	maskBits int
}

// NewIPAddress constructs an [IPAddress] from a dotted-quad address
// and a dotted-quad subnet mask (e.g., "10.0.0.7", "255.255.255.0").
func NewIPAddress(addr, mask string) (IPAddress, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return IPAddress{}, err
	}
	if !a.Is4() {
		return IPAddress{}, errors.Errorf("not an IPv4 address: %s", addr)
	}
	bits, err := parseSubnetMask(mask)
	if err != nil {
		return IPAddress{}, err
	}
	return IPAddress{addr: a, maskBits: bits}, nil
}

// MustIPAddress is like [NewIPAddress] but panics on error.
func MustIPAddress(addr, mask string) IPAddress {
	return runtimex.PanicOnError1(NewIPAddress(addr, mask))
}

// parseSubnetMask converts a dotted-quad mask into a prefix length,
// rejecting non-contiguous masks.
func parseSubnetMask(mask string) (int, error) {
	a, err := netip.ParseAddr(mask)
	if err != nil || !a.Is4() {
		return 0, errors.Errorf("invalid subnet mask: %s", mask)
	}
	m := binary.BigEndian.Uint32(a.AsSlice())
	ones := bits.OnesCount32(m)
	if ones > 0 && m != ^uint32(0)<<(32-ones) {
		return 0, errors.Errorf("non-contiguous subnet mask: %s", mask)
	}
	return ones, nil
}

// IsValid reports whether this address was properly constructed.
func (ip IPAddress) IsValid() bool {
	return ip.addr.IsValid()
}

// Addr returns the host address.
func (ip IPAddress) Addr() netip.Addr {
	return ip.addr
}

// Prefix returns the network prefix (masked).
func (ip IPAddress) Prefix() netip.Prefix {
	return netip.PrefixFrom(ip.addr, ip.maskBits).Masked()
}

// NetworkAddr returns the network address.
func (ip IPAddress) NetworkAddr() netip.Addr {
	return ip.Prefix().Addr()
}

// BroadcastAddr returns the directed broadcast address.
func (ip IPAddress) BroadcastAddr() netip.Addr {
	network := binary.BigEndian.Uint32(ip.NetworkAddr().AsSlice())
	host := ^uint32(0) >> ip.maskBits
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], network|host)
	return netip.AddrFrom4(raw)
}

// InNetwork reports whether other falls inside this address's network.
func (ip IPAddress) InNetwork(other netip.Addr) bool {
	return ip.Prefix().Contains(other)
}

// String formats the address in CIDR-ish form (addr/prefixlen).
func (ip IPAddress) String() string {
	return fmt.Sprintf("%s/%d", ip.addr, ip.maskBits)
}
