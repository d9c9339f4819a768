// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import "fmt"

// FrameType tags the role of a [*Frame] on the link.
type FrameType uint8

// Enumerate the frame types.
const (
	// FrameData carries a message chunk or an encapsulated [*Packet].
	FrameData FrameType = iota + 1

	// FrameAck acknowledges every sequence number below the one named
	// in its payload (cumulative ACK).
	FrameAck

	// FrameNak requests immediate retransmission of one sequence number.
	FrameNak

	// FrameArpRequest asks who owns an IP address (broadcast).
	FrameArpRequest

	// FrameArpReply answers an ARP request (unicast).
	FrameArpReply
)

// String implements [fmt.Stringer].
func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameAck:
		return "ACK"
	case FrameNak:
		return "NAK"
	case FrameArpRequest:
		return "ARP_REQUEST"
	case FrameArpReply:
		return "ARP_REPLY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Frame is the data-link PDU. The checksum is computed once at
// construction and never updated afterwards: mutating the payload
// without reconstructing the frame models corruption on the wire and
// makes [*Frame.IsValid] return false on arrival.
//
// Construct using [NewFrame] or [NewPacketFrame].
type Frame struct {
	// SrcMAC is the sender's address.
	SrcMAC MACAddress

	// DstMAC is the receiver's address, possibly [BroadcastMAC].
	DstMAC MACAddress

	// Payload carries message chunks or control data.
	Payload []byte

	// Seq is the sequence number, scoped to the sending endpoint.
	Seq int

	// Type tags the frame's role.
	Type FrameType

	// Packet optionally encapsulates a network PDU (router path).
	Packet *Packet

	// checksum is the value computed at construction.
	checksum uint8
}

// NewFrame creates a new [*Frame] carrying the given payload.
func NewFrame(src, dst MACAddress, payload []byte, seq int, ftype FrameType) *Frame {
	f := &Frame{
		SrcMAC:  src,
		DstMAC:  dst,
		Payload: payload,
		Seq:     seq,
		Type:    ftype,
	}
	f.checksum = f.computeChecksum()
	return f
}

// NewPacketFrame creates a new DATA [*Frame] encapsulating a packet.
func NewPacketFrame(src, dst MACAddress, pkt *Packet) *Frame {
	f := &Frame{
		SrcMAC: src,
		DstMAC: dst,
		Seq:    0,
		Type:   FrameData,
		Packet: pkt,
	}
	f.checksum = f.computeChecksum()
	return f
}

// computeChecksum sums header fields and payload modulo 256. The
// policy is illustrative, not standards-compliant.
func (f *Frame) computeChecksum() uint8 {
	var sum uint32
	for _, b := range f.SrcMAC {
		sum += uint32(b)
	}
	for _, b := range f.DstMAC {
		sum += uint32(b)
	}
	sum += uint32(f.Seq)
	sum += uint32(f.Type)
	for _, b := range f.Payload {
		sum += uint32(b)
	}
	if f.Packet != nil {
		sum += uint32(f.Packet.Checksum())
	}
	return uint8(sum % 256)
}

// Checksum returns the checksum computed at construction.
func (f *Frame) Checksum() uint8 {
	return f.checksum
}

// IsValid recomputes the checksum and compares it with the value set
// at construction.
func (f *Frame) IsValid() bool {
	return f.computeChecksum() == f.checksum
}

// Corrupt flips one payload bit without updating the checksum, so the
// frame arrives with IsValid() == false. Frames without payload are
// left untouched.
func (f *Frame) Corrupt() {
	if len(f.Payload) == 0 {
		return
	}
	// copy-on-write so corruption never reaches the sender's buffers
	mutated := make([]byte, len(f.Payload))
	copy(mutated, f.Payload)
	mutated[len(mutated)/2] ^= 0x01
	f.Payload = mutated
}

// Clone returns a deep copy of the frame. Links always deliver copies
// so that in-flight mutation cannot touch the sender's state.
func (f *Frame) Clone() *Frame {
	dup := *f
	if f.Payload != nil {
		dup.Payload = make([]byte, len(f.Payload))
		copy(dup.Payload, f.Payload)
	}
	if f.Packet != nil {
		dup.Packet = f.Packet.Clone()
	}
	return &dup
}

// String implements [fmt.Stringer].
func (f *Frame) String() string {
	preview := f.Payload
	const previewLen = 20
	suffix := ""
	if len(preview) > previewLen {
		preview = preview[:previewLen]
		suffix = "..."
	}
	return fmt.Sprintf("Frame[%s:%d] %s->%s: %q%s",
		f.Type, f.Seq, f.SrcMAC, f.DstMAC, preview, suffix)
}
