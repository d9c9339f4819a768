// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import "errors"

// Errors returned by the link, ARQ, ARP, and routing layers. Callers
// should match with [errors.Is] since most call sites wrap these with
// additional context.
var (
	// ErrNotConnected means the transmitting endpoint is not attached
	// to the link it is trying to use.
	ErrNotConnected = errors.New("lansim: endpoint not connected to link")

	// ErrNoDestination means the link has no second endpoint.
	ErrNoDestination = errors.New("lansim: link has no destination endpoint")

	// ErrMaxAttempts means the CSMA/CD attempt budget was exhausted
	// without a successful transmission.
	ErrMaxAttempts = errors.New("lansim: maximum transmission attempts exceeded")

	// ErrChecksumMismatch means a frame or packet failed validation.
	ErrChecksumMismatch = errors.New("lansim: checksum mismatch")

	// ErrTimeout means an outstanding frame was not acknowledged within
	// the retransmission timeout.
	ErrTimeout = errors.New("lansim: acknowledgment timeout")

	// ErrDeliveryFailed means the ARQ retry budget for a message was
	// exhausted and the remainder of the message was aborted.
	ErrDeliveryFailed = errors.New("lansim: delivery failed")

	// ErrTTLExpired means a packet's TTL reached zero while being routed.
	ErrTTLExpired = errors.New("lansim: packet TTL expired")

	// ErrNoRoute means no routing table entry matched the destination.
	ErrNoRoute = errors.New("lansim: no route to destination")

	// ErrArpUnresolved means the next hop's MAC address is unknown. The
	// ARP request has been issued; the caller decides whether to retry.
	ErrArpUnresolved = errors.New("lansim: address not resolved")

	// ErrMalformedControlFrame means an ACK, NAK, or ARP payload could
	// not be parsed. The frame is discarded.
	ErrMalformedControlFrame = errors.New("lansim: malformed control frame")
)
