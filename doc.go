// SPDX-License-Identifier: GPL-3.0-or-later

// Package lansim models a layered network stack in process so that
// protocol behavior can be observed and verified without real hardware
// or sockets.
//
// The package simulates three tightly coupled mechanisms:
//
// 1. Shared-medium arbitration on a [*Link]: carrier sense, collision
// detection, and backoff (CSMA/CD).
//
// 2. Reliable delivery on a [*Device]: Stop-and-Wait and Go-Back-N ARQ
// with sequencing, acknowledgments, timeout-driven retransmission,
// out-of-order buffering, and message reassembly.
//
// 3. Network-layer forwarding on a [*Router]: an ARP cache with expiry,
// longest-prefix-match route lookup, and TTL-based loop termination.
//
// The typical usage is to create two or more [*Device] instances,
// attach them to [*Link] instances, and call [*Device.Send]. For
// cross-network traffic, configure a [*Router] with interfaces and
// routes and use [*Device.SendPacket].
//
// Collision, corruption, and loss decisions come from an injected
// [FaultModel], so tests can force deterministic outcomes. The
// [Faultless] model disables all induced faults.
//
// The [*FrameTrace] type captures frames in flight in PCAP format so
// that exchanges can be inspected with tools such as wireshark.
package lansim
