// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"crypto/rand"
	"net"

	"github.com/bassosimone/runtimex"
	"github.com/pkg/errors"
)

// MACAddress is a 6-byte link-layer address. The zero value is the
// all-zeros address, which is never assigned to an endpoint. Values
// compare and hash by literal value.
type MACAddress [6]byte

// BroadcastMAC is the all-ones broadcast address. Frames sent to it
// are accepted by every endpoint on the link.
var BroadcastMAC = MACAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// RandomMAC returns a fresh locally-administered unicast address.
func RandomMAC() MACAddress {
	var m MACAddress
	_ = runtimex.PanicOnError1(rand.Read(m[:]))
	m[0] = (m[0] | 0x02) &^ 0x01 // locally administered, unicast
	return m
}

// ParseMAC parses a textual MAC address (e.g., "02:00:5e:10:00:01").
func ParseMAC(s string) (MACAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MACAddress{}, err
	}
	if len(hw) != len(MACAddress{}) {
		return MACAddress{}, errors.Errorf("not a 6-byte MAC address: %s", s)
	}
	var m MACAddress
	copy(m[:], hw)
	return m, nil
}

// String formats the address in the usual colon-separated form.
func (m MACAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// IsBroadcast reports whether this is the broadcast address.
func (m MACAddress) IsBroadcast() bool {
	return m == BroadcastMAC
}

// IsZero reports whether this is the (unassigned) zero address.
func (m MACAddress) IsZero() bool {
	return m == MACAddress{}
}
