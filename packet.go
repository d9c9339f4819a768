// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"fmt"
	"net/netip"
)

// Packet is the network-layer PDU. Like [*Frame], the checksum is
// computed once at construction; the TTL is deliberately excluded from
// it because every routing hop decrements the TTL in place.
//
// Construct using [NewPacket].
type Packet struct {
	// SrcIP is the originating host address.
	SrcIP netip.Addr

	// DstIP is the destination host address.
	DstIP netip.Addr

	// Payload is the application data.
	Payload []byte

	// TTL is the remaining hop budget. It decrements exactly once per
	// routing hop; reaching zero drops this packet instance.
	TTL int

	// Protocol identifies the payload's protocol.
	Protocol int

	// checksum is the value computed at construction.
	checksum uint8
}

// NewPacket creates a new [*Packet].
func NewPacket(src, dst netip.Addr, payload []byte, ttl, protocol int) *Packet {
	p := &Packet{
		SrcIP:    src,
		DstIP:    dst,
		Payload:  payload,
		TTL:      ttl,
		Protocol: protocol,
	}
	p.checksum = p.computeChecksum()
	return p
}

// computeChecksum sums the addresses, protocol, and payload modulo 256.
func (p *Packet) computeChecksum() uint8 {
	var sum uint32
	for _, b := range p.SrcIP.AsSlice() {
		sum += uint32(b)
	}
	for _, b := range p.DstIP.AsSlice() {
		sum += uint32(b)
	}
	sum += uint32(p.Protocol)
	for _, b := range p.Payload {
		sum += uint32(b)
	}
	return uint8(sum % 256)
}

// Checksum returns the checksum computed at construction.
func (p *Packet) Checksum() uint8 {
	return p.checksum
}

// IsValid recomputes the checksum and compares it with the value set
// at construction.
func (p *Packet) IsValid() bool {
	return p.computeChecksum() == p.checksum
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	dup := *p
	if p.Payload != nil {
		dup.Payload = make([]byte, len(p.Payload))
		copy(dup.Payload, p.Payload)
	}
	return &dup
}

// String implements [fmt.Stringer].
func (p *Packet) String() string {
	return fmt.Sprintf("Packet[%d] %s->%s ttl=%d len=%d",
		p.Protocol, p.SrcIP, p.DstIP, p.TTL, len(p.Payload))
}
