// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/pkg/errors"
)

// sizePrefix announces a message's total length in its header frame.
const sizePrefix = "__SIZE__"

// ackPrefix tags cumulative acknowledgment payloads.
const ackPrefix = "ACK-"

// ReceivedMessage is one reassembled message in a device's log.
type ReceivedMessage struct {
	// Data is the reassembled message.
	Data string

	// From is the sender's MAC address.
	From MACAddress
}

// pendingFrame is one unacknowledged frame awaiting a cumulative ACK.
type pendingFrame struct {
	frame   *Frame
	sentAt  time.Time
	retries int
}

// Device is an endpoint with a reliable-delivery (ARQ) engine. It
// splits outbound messages into sequenced frames, delivers them with
// Stop-and-Wait or Go-Back-N, and reassembles inbound streams.
//
// A device may additionally carry an IP address (see
// [*Device.AssignIP]), which enables [*Device.SendPacket] and ARP
// participation.
//
// Construct using [NewDevice].
type Device struct {
	// cfg holds the simulation tunables.
	cfg Config

	// faults supplies the ack-loss decisions for Stop-and-Wait.
	faults FaultModel

	// logger receives the device's events.
	logger Logger

	// mac is the device's hardware address.
	mac MACAddress

	// name is the device's topology name.
	name string

	// mu guards every field below.
	mu sync.Mutex

	// links are the attached links.
	links []*Link

	// useGoBackN selects the ARQ mode; Stop-and-Wait by default.
	useGoBackN bool

	// windowSize is the Go-Back-N window.
	windowSize int

	// nextSeq is the next sequence number to assign, scoped to this
	// device.
	nextSeq int

	// expected maps each peer to the next sequence number accepted
	// in order.
	expected map[MACAddress]int

	// unacked maps sequence numbers to frames awaiting acknowledgment.
	unacked map[int]*pendingFrame

	// sendFailed is set when any frame exhausts its retry budget.
	sendFailed bool

	// pending buffers early-arrived frames per peer, sorted by
	// sequence number.
	pending map[MACAddress][]*Frame

	// chunks buffers accepted payload units per peer, keyed by
	// sequence number, until reassembly.
	chunks map[MACAddress]map[int][]byte

	// expectedSizes records each peer's announced message length.
	expectedSizes map[MACAddress]int

	// messages is the log of reassembled messages.
	messages []ReceivedMessage

	// ip is the optional network-layer address.
	ip IPAddress

	// gateway is the default next hop for off-network destinations.
	gateway netip.Addr

	// arp resolves next-hop IPs once an address is assigned.
	arp *ArpResolver
}

// DeviceOption is an option for [NewDevice].
type DeviceOption func(d *Device)

// DeviceOptionConfig overrides the default [Config].
func DeviceOptionConfig(cfg Config) DeviceOption {
	return func(d *Device) {
		d.cfg = cfg
	}
}

// DeviceOptionFaults overrides the default [FaultModel].
func DeviceOptionFaults(fm FaultModel) DeviceOption {
	return func(d *Device) {
		d.faults = fm
	}
}

// DeviceOptionLogger overrides the default no-op [Logger].
func DeviceOptionLogger(logger Logger) DeviceOption {
	return func(d *Device) {
		d.logger = logger
	}
}

// DeviceOptionMAC overrides the random MAC address.
func DeviceOptionMAC(mac MACAddress) DeviceOption {
	return func(d *Device) {
		d.mac = mac
	}
}

// NewDevice creates a new [*Device]. Without options it uses
// [DefaultConfig], a random MAC address, and a [NewRandomFaults]
// stream named after the device.
func NewDevice(name string, options ...DeviceOption) *Device {
	d := &Device{
		cfg:           DefaultConfig(),
		logger:        NopLogger(),
		mac:           RandomMAC(),
		name:          name,
		windowSize:    0,
		expected:      make(map[MACAddress]int),
		unacked:       make(map[int]*pendingFrame),
		pending:       make(map[MACAddress][]*Frame),
		chunks:        make(map[MACAddress]map[int][]byte),
		expectedSizes: make(map[MACAddress]int),
	}
	for _, opt := range options {
		opt(d)
	}
	if d.faults == nil {
		d.faults = NewRandomFaults("device."+name, d.cfg)
	}
	d.windowSize = d.cfg.WindowSize
	d.logger = d.logger.WithField("device", name)
	return d
}

var (
	_ Endpoint = &Device{}
	_ ArpNode  = &Device{}
)

// Name implements [Endpoint].
func (d *Device) Name() string {
	return d.name
}

// MAC returns the device's hardware address.
func (d *Device) MAC() MACAddress {
	return d.mac
}

// Connect attaches the device to a link.
func (d *Device) Connect(link *Link) error {
	if err := link.Attach(d); err != nil {
		return err
	}
	d.mu.Lock()
	d.links = append(d.links, link)
	d.mu.Unlock()
	d.logger.Infof("connected to link %s", link.Name())
	return nil
}

// Disconnect detaches the device from a link.
func (d *Device) Disconnect(link *Link) {
	link.Detach(d)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.links {
		if l == link {
			d.links = append(d.links[:i], d.links[i+1:]...)
			break
		}
	}
}

// EnableReliableMode switches the device from Stop-and-Wait to
// Go-Back-N with the given window size.
func (d *Device) EnableReliableMode(windowSize int) {
	runtimex.Assert(windowSize >= 1)
	d.mu.Lock()
	d.useGoBackN = true
	d.windowSize = windowSize
	d.mu.Unlock()
	d.logger.Infof("go-back-n enabled with window size %d", windowSize)
}

// Messages returns a copy of the reassembled-message log.
func (d *Device) Messages() []ReceivedMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ReceivedMessage, len(d.messages))
	copy(out, d.messages)
	return out
}

// UnackedCount returns the number of frames awaiting acknowledgment.
func (d *Device) UnackedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.unacked)
}

// Send delivers a message to the endpoint owning target using the
// configured ARQ mode. Pass [BroadcastMAC] (or the zero address) to
// broadcast. The message is split into a size-header frame followed
// by fixed-size chunks, each with its own sequence number.
//
// Exhausting the retry budget for any frame fails the whole message
// with [ErrDeliveryFailed] and aborts its remaining frames.
func (d *Device) Send(message []byte, target MACAddress) error {
	if len(message) == 0 {
		return errors.New("lansim: refusing to send an empty message")
	}

	d.mu.Lock()
	if len(d.links) == 0 {
		d.mu.Unlock()
		return errors.Wrapf(ErrNotConnected, "device %s has no links", d.name)
	}
	frames := d.buildFramesLocked(message, target)
	goBackN := d.useGoBackN
	d.mu.Unlock()

	d.logger.Infof("sending %d bytes as %d frames", len(message), len(frames))
	if goBackN {
		return d.sendGoBackN(frames)
	}
	return d.sendStopAndWait(frames)
}

// buildFramesLocked splits a message into a size-header frame plus one
// frame per chunk, assigning strictly increasing sequence numbers.
// Caller holds mu.
func (d *Device) buildFramesLocked(message []byte, target MACAddress) []*Frame {
	dst := target
	if dst.IsZero() {
		dst = BroadcastMAC
	}

	header := fmt.Sprintf("%s%d", sizePrefix, len(message))
	frames := []*Frame{
		NewFrame(d.mac, dst, []byte(header), d.nextSeq, FrameData),
	}
	d.nextSeq++

	for i := 0; i < len(message); i += d.cfg.ChunkSize {
		end := min(i+d.cfg.ChunkSize, len(message))
		frames = append(frames, NewFrame(d.mac, dst, message[i:end], d.nextSeq, FrameData))
		d.nextSeq++
	}
	return frames
}

// sendStopAndWait sends frames one at a time, waiting for the
// simulated acknowledgment after each, and retries each frame up to
// the configured budget.
func (d *Device) sendStopAndWait(frames []*Frame) error {
	for _, frame := range frames {
		acked := false
		var lastErr error
		for attempt := 1; attempt <= d.cfg.MaxSendRetries && !acked; attempt++ {
			d.logger.Infof("sending %s (attempt %d/%d)", frame, attempt, d.cfg.MaxSendRetries)
			err := d.broadcast(frame)

			// wait out the simulated propagation of the acknowledgment
			time.Sleep(d.cfg.TransmissionDelay)

			switch {
			case err != nil:
				lastErr = err
				time.Sleep(d.cfg.TransmissionDelay)
			case d.faults.AckLost():
				lastErr = errors.Wrapf(ErrTimeout, "frame %d", frame.Seq)
				d.logger.Warnf("frame %d timed out, retrying (%d/%d)",
					frame.Seq, attempt, d.cfg.MaxSendRetries)
				time.Sleep(d.cfg.TransmissionDelay)
			default:
				acked = true
			}
		}
		if !acked {
			d.logger.Errorf("failed to send frame %d after %d attempts",
				frame.Seq, d.cfg.MaxSendRetries)
			return errors.Wrapf(ErrDeliveryFailed, "frame %d: %v", frame.Seq, lastErr)
		}
	}
	return nil
}

// sendGoBackN sends frames with a sliding window. A background timer
// task retransmits stale frames; the main loop rewinds the whole
// window to the oldest unacknowledged frame whenever any outstanding
// frame exceeds the retransmission timeout (full Go-Back-N semantics).
// The timer task is joined before returning.
func (d *Device) sendGoBackN(frames []*Frame) error {
	d.mu.Lock()
	window := d.windowSize
	d.sendFailed = false
	d.mu.Unlock()

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.retransmitLoop(stop)
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	d.logger.Infof("go-back-n: %d frames, window %d", len(frames), window)
	base, next := 0, 0
	for base < len(frames) {
		// 1. fill the window
		for next < base+window && next < len(frames) {
			d.trackAndSend(frames[next])
			next++
		}

		// 2. let acknowledgments arrive
		time.Sleep(2 * d.cfg.TransmissionDelay)

		// 3. inspect the unacknowledged table
		d.mu.Lock()
		failed := d.sendFailed
		timedOut := false
		now := time.Now()
		for _, p := range d.unacked {
			if now.Sub(p.sentAt) > d.cfg.RetransmitTimeout {
				timedOut = true
				break
			}
		}
		d.mu.Unlock()

		if failed {
			d.clearUnacked()
			d.logger.Errorf("go-back-n retry budget exhausted")
			return errors.Wrapf(ErrDeliveryFailed, "retry budget exhausted after frame %d",
				frames[base].Seq)
		}
		if timedOut {
			d.logger.Warnf("timeout: rewinding window to frame %d", frames[base].Seq)
			next = base
			continue
		}

		// 4. slide the base past acknowledged frames
		for base < len(frames) {
			d.mu.Lock()
			_, outstanding := d.unacked[frames[base].Seq]
			d.mu.Unlock()
			if outstanding {
				break
			}
			base++
		}
	}
	return nil
}

// trackAndSend records a frame in the unacknowledged table (refreshing
// its timestamp and charging a retry when already present) and puts it
// on the wire.
func (d *Device) trackAndSend(frame *Frame) {
	d.mu.Lock()
	if p, found := d.unacked[frame.Seq]; found {
		p.sentAt = time.Now()
		p.retries++
		if p.retries > d.cfg.MaxSendRetries {
			d.sendFailed = true
		}
	} else {
		d.unacked[frame.Seq] = &pendingFrame{frame: frame, sentAt: time.Now()}
	}
	d.mu.Unlock()

	if err := d.broadcast(frame); err != nil {
		// recovered by the timeout path
		d.logger.Warnf("transmit of frame %d failed: %v", frame.Seq, err)
	}
}

// retransmitLoop periodically rescans the unacknowledged table and
// retransmits stale frames until told to stop.
func (d *Device) retransmitLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(d.cfg.RetryScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.retransmitStale()
		}
	}
}

// retransmitStale resends every unacknowledged frame older than the
// retransmission timeout, refreshing timestamps and charging retries.
func (d *Device) retransmitStale() {
	d.mu.Lock()
	now := time.Now()
	var stale []*Frame
	for _, p := range d.unacked {
		if now.Sub(p.sentAt) > d.cfg.RetransmitTimeout {
			p.sentAt = now
			p.retries++
			if p.retries > d.cfg.MaxSendRetries {
				d.sendFailed = true
			}
			stale = append(stale, p.frame)
		}
	}
	d.mu.Unlock()

	for _, frame := range stale {
		d.logger.Warnf("frame %d timed out, retransmitting", frame.Seq)
		if err := d.broadcast(frame); err != nil {
			d.logger.Warnf("retransmit of frame %d failed: %v", frame.Seq, err)
		}
	}
}

// clearUnacked empties the unacknowledged table after an aborted send.
func (d *Device) clearUnacked() {
	d.mu.Lock()
	d.unacked = make(map[int]*pendingFrame)
	d.mu.Unlock()
}

// broadcast transmits a frame on every attached link. It succeeds
// when at least one link delivered the frame.
func (d *Device) broadcast(frame *Frame) error {
	d.mu.Lock()
	links := make([]*Link, len(d.links))
	copy(links, d.links)
	d.mu.Unlock()

	if len(links) == 0 {
		return errors.Wrapf(ErrNotConnected, "device %s has no links", d.name)
	}

	delivered := false
	var lastErr error
	for _, link := range links {
		if err := link.Transmit(frame, d); err != nil {
			lastErr = err
			d.logger.Warnf("transmit on link %s failed: %v", link.Name(), err)
			continue
		}
		delivered = true
	}
	if !delivered {
		return lastErr
	}
	return nil
}

// ReceiveFrame implements [Endpoint]. It filters frames by destination
// address, rejects corrupted frames with a duplicate ACK, and routes
// control frames to the ACK/NAK/ARP handlers and DATA frames through
// in-order buffering and reassembly.
func (d *Device) ReceiveFrame(frame *Frame, from Endpoint) {
	// 1. address filter
	if frame.DstMAC != d.mac && !frame.DstMAC.IsBroadcast() {
		d.logger.Debugf("ignoring frame addressed to %s", frame.DstMAC)
		return
	}

	// 2. checksum reject: no buffering, no ACK for the frame itself;
	// a duplicate ACK tells the sender where to resume
	if !frame.IsValid() {
		d.logger.Warnf("corrupted frame %d from %s: %v",
			frame.Seq, frame.SrcMAC, ErrChecksumMismatch)
		if frame.Type == FrameData {
			d.mu.Lock()
			expected := d.expected[frame.SrcMAC]
			d.mu.Unlock()
			d.sendAck(frame.SrcMAC, expected)
		}
		return
	}

	// 3. dispatch by type
	switch frame.Type {
	case FrameArpRequest:
		if arp := d.resolver(); arp != nil {
			arp.HandleRequest(frame, "")
		}
	case FrameArpReply:
		if arp := d.resolver(); arp != nil {
			arp.HandleReply(frame, "")
		}
	case FrameAck:
		d.handleAck(frame)
	case FrameNak:
		d.handleNak(frame)
	case FrameData:
		if frame.Packet != nil {
			d.handlePacket(frame)
			return
		}
		d.handleData(frame)
	default:
		d.logger.Warnf("discarding frame of unknown type %d", frame.Type)
	}
}

// handleAck removes every unacknowledged frame below the cumulative
// acknowledgment point.
func (d *Device) handleAck(frame *Frame) {
	k, err := parseControlSeq(frame.Payload, ackPrefix)
	if err != nil {
		d.logger.Warnf("discarding ack: %v", err)
		return
	}
	d.mu.Lock()
	for seq := range d.unacked {
		if seq < k {
			delete(d.unacked, seq)
		}
	}
	d.mu.Unlock()
	d.logger.Debugf("ack %d: frames below %d acknowledged", k, k)
}

// handleNak retransmits the one frame the peer rejected, refreshing
// its timestamp.
func (d *Device) handleNak(frame *Frame) {
	d.mu.Lock()
	p, found := d.unacked[frame.Seq]
	var retransmit *Frame
	if found {
		p.sentAt = time.Now()
		retransmit = p.frame
	}
	d.mu.Unlock()
	if !found {
		return
	}
	d.logger.Warnf("nak for frame %d, retransmitting", frame.Seq)
	if err := d.broadcast(retransmit); err != nil {
		d.logger.Warnf("retransmit of frame %d failed: %v", frame.Seq, err)
	}
}

// handleData runs the receive path for payload-carrying frames.
func (d *Device) handleData(frame *Frame) {
	src := frame.SrcMAC
	payload := string(frame.Payload)

	// size header: record the announced length and resynchronize
	if strings.HasPrefix(payload, sizePrefix) {
		size, err := strconv.Atoi(strings.TrimPrefix(payload, sizePrefix))
		if err != nil || size < 0 {
			d.logger.Warnf("invalid size header %q", payload)
			return
		}
		d.mu.Lock()
		d.expectedSizes[src] = size
		d.chunks[src] = make(map[int][]byte)
		d.expected[src] = frame.Seq + 1
		d.mu.Unlock()
		d.logger.Infof("%s announced a message of %d bytes", src, size)
		d.sendAck(src, frame.Seq+1)
		return
	}

	d.mu.Lock()
	expected := d.expected[src]
	switch {
	case frame.Seq == expected:
		// in order: accept, ACK the new expectation, then drain
		d.storeChunkLocked(src, frame.Seq, frame.Payload)
		d.expected[src] = expected + 1
		d.mu.Unlock()
		d.sendAck(src, expected+1)

		d.mu.Lock()
		d.drainPendingLocked(src)
		message, complete := d.reassembleLocked(src)
		d.mu.Unlock()
		if complete {
			d.logger.Infof("reassembled %d-byte message from %s", len(message), src)
		}

	case frame.Seq > expected:
		// early: buffer and emit a duplicate ACK for what we still need
		d.bufferPendingLocked(src, frame)
		d.mu.Unlock()
		d.logger.Warnf("out-of-order frame %d from %s, expected %d", frame.Seq, src, expected)
		d.sendAck(src, expected)

	default:
		// duplicate of an already accepted frame: re-ACK the expectation
		d.mu.Unlock()
		d.sendAck(src, expected)
	}
}

// handlePacket accepts an encapsulated network PDU addressed to this
// device's IP address.
func (d *Device) handlePacket(frame *Frame) {
	pkt := frame.Packet
	if !pkt.IsValid() {
		d.logger.Warnf("corrupted packet from %s: %v", pkt.SrcIP, ErrChecksumMismatch)
		return
	}

	d.mu.Lock()
	ip := d.ip
	d.mu.Unlock()
	if !ip.IsValid() || (pkt.DstIP != ip.Addr() && pkt.DstIP != ip.BroadcastAddr()) {
		d.logger.Debugf("ignoring packet for %s", pkt.DstIP)
		return
	}

	d.mu.Lock()
	d.messages = append(d.messages, ReceivedMessage{
		Data: string(pkt.Payload),
		From: frame.SrcMAC,
	})
	d.mu.Unlock()
	d.logger.Infof("received %d-byte packet from %s", len(pkt.Payload), pkt.SrcIP)
}

// sendAck emits a cumulative acknowledgment naming the next expected
// sequence number.
func (d *Device) sendAck(peer MACAddress, nextExpected int) {
	payload := fmt.Sprintf("%s%d", ackPrefix, nextExpected)
	ack := NewFrame(d.mac, peer, []byte(payload), nextExpected-1, FrameAck)
	d.logger.Debugf("sending ack %d to %s", nextExpected, peer)
	if err := d.broadcast(ack); err != nil {
		d.logger.Warnf("ack %d to %s failed: %v", nextExpected, peer, err)
	}
}

// storeChunkLocked records one accepted payload unit at its sequence
// position. Caller holds mu.
func (d *Device) storeChunkLocked(src MACAddress, seq int, payload []byte) {
	m := d.chunks[src]
	if m == nil {
		m = make(map[int][]byte)
		d.chunks[src] = m
	}
	unit := make([]byte, len(payload))
	copy(unit, payload)
	m[seq] = unit
}

// bufferPendingLocked inserts an early frame into the per-peer pending
// buffer, keeping it sorted and dropping duplicates. Caller holds mu.
func (d *Device) bufferPendingLocked(src MACAddress, frame *Frame) {
	queue := d.pending[src]
	pos := sort.Search(len(queue), func(i int) bool {
		return queue[i].Seq >= frame.Seq
	})
	if pos < len(queue) && queue[pos].Seq == frame.Seq {
		return
	}
	queue = append(queue, nil)
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = frame
	d.pending[src] = queue
}

// drainPendingLocked moves now-contiguous buffered frames into the
// chunk store, advancing the expectation. Caller holds mu.
func (d *Device) drainPendingLocked(src MACAddress) {
	queue := d.pending[src]
	for len(queue) > 0 {
		head := queue[0]
		switch {
		case head.Seq < d.expected[src]:
			queue = queue[1:] // stale duplicate
		case head.Seq == d.expected[src]:
			d.storeChunkLocked(src, head.Seq, head.Payload)
			d.expected[src]++
			queue = queue[1:]
			d.logger.Debugf("drained buffered frame %d from %s", head.Seq, src)
		default:
			d.pending[src] = queue
			return
		}
	}
	d.pending[src] = queue
}

// reassembleLocked emits the complete message once the buffered unit
// bytes reach the announced length: units concatenate in sequence
// order and truncate to the declared length, then the peer's buffers
// clear so a message is never delivered partially or twice. Caller
// holds mu.
func (d *Device) reassembleLocked(src MACAddress) (string, bool) {
	size, announced := d.expectedSizes[src]
	if !announced {
		return "", false
	}
	units := d.chunks[src]
	total := 0
	for _, unit := range units {
		total += len(unit)
	}
	if total < size {
		return "", false
	}

	seqs := make([]int, 0, len(units))
	for seq := range units {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	assembled := make([]byte, 0, total)
	for _, seq := range seqs {
		assembled = append(assembled, units[seq]...)
	}
	runtimex.Assert(len(assembled) >= size)
	message := string(assembled[:size])

	delete(d.chunks, src)
	delete(d.expectedSizes, src)
	d.messages = append(d.messages, ReceivedMessage{Data: message, From: src})
	return message, true
}

// parseControlSeq extracts the sequence number from an "ACK-<n>" style
// control payload.
func parseControlSeq(payload []byte, prefix string) (int, error) {
	value, found := strings.CutPrefix(string(payload), prefix)
	if !found {
		return 0, errors.Wrapf(ErrMalformedControlFrame, "%q", payload)
	}
	seq, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedControlFrame, "%q: %v", payload, err)
	}
	return seq, nil
}

// AssignIP gives the device a network-layer address and an optional
// default gateway (pass the zero [netip.Addr] for none), enabling
// [*Device.SendPacket] and ARP participation.
func (d *Device) AssignIP(ip IPAddress, gateway netip.Addr) {
	d.mu.Lock()
	d.ip = ip
	d.gateway = gateway
	if d.arp == nil {
		d.arp = NewArpResolver(d, d.cfg, d.logger)
	}
	d.mu.Unlock()
	d.logger.Infof("assigned address %s", ip)
}

// IP returns the device's network-layer address, if assigned.
func (d *Device) IP() (IPAddress, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ip, d.ip.IsValid()
}

// resolver returns the device's ARP resolver, or nil before AssignIP.
func (d *Device) resolver() *ArpResolver {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.arp
}

// ArpEntries returns a snapshot of the device's ARP cache.
func (d *Device) ArpEntries() []ArpEntry {
	arp := d.resolver()
	if arp == nil {
		return nil
	}
	return arp.Entries()
}

// ArpBindings implements [ArpNode].
func (d *Device) ArpBindings() []ArpBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ip.IsValid() {
		return nil
	}
	return []ArpBinding{{IP: d.ip.Addr(), MAC: d.mac}}
}

// SendArpFrame implements [ArpNode]: ARP frames go out of every link.
func (d *Device) SendArpFrame(frame *Frame, iface string) {
	if err := d.broadcast(frame); err != nil {
		d.logger.Warnf("arp frame failed: %v", err)
	}
}

// SendPacket sends payload to the destination IP address. In-network
// destinations are framed directly; off-network destinations go to
// the default gateway. When ARP cannot resolve the next hop the
// packet is dropped and the error reports [ErrArpUnresolved]; the
// request has been issued, so a later retry will typically hit the
// cache.
func (d *Device) SendPacket(dst netip.Addr, payload []byte, protocol int) error {
	d.mu.Lock()
	ip := d.ip
	gateway := d.gateway
	arp := d.arp
	d.mu.Unlock()

	if !ip.IsValid() {
		return errors.Wrapf(ErrNoRoute, "device %s has no IP address", d.name)
	}

	target := dst
	if !ip.InNetwork(dst) {
		if !gateway.IsValid() {
			return errors.Wrapf(ErrNoRoute, "%s is off-network and %s has no gateway",
				dst, d.name)
		}
		target = gateway
	}

	mac, resolved := arp.Resolve(target)
	if !resolved {
		return errors.Wrapf(ErrArpUnresolved, "%s", target)
	}

	pkt := NewPacket(ip.Addr(), dst, payload, d.cfg.DefaultTTL, protocol)
	frame := NewPacketFrame(d.mac, mac, pkt)
	d.logger.Infof("sending %s via %s", pkt, mac)
	return d.broadcast(frame)
}
