// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// frameEtherType marks captured frames; it belongs to the local
// experimental range so dissectors leave the body alone.
const frameEtherType = 0x88B5

// frameSnapshot is a captured frame encoding.
type frameSnapshot struct {
	// data is the serialized frame.
	data []byte
}

// FrameTrace writes every observed [*Frame] to a pcap file. Wire it
// to a link through [LinkOptionObserver]:
//
//	trace := lansim.NewFrameTrace(file)
//	link := lansim.NewLink("ab", lansim.LinkOptionObserver(trace.Dump))
//
// Each frame is wrapped in an Ethernet header carrying the simulated
// MAC addresses, followed by the frame type, sequence number,
// checksum, and payload.
type FrameTrace struct {
	// cancel allows to cancel the background goroutine.
	cancel context.CancelFunc

	// dropped is the number of frames dropped.
	dropped atomic.Uint64

	// errch contains the error returned by the background goroutine.
	errch chan error

	// snaps contains the captured frames.
	snaps chan frameSnapshot

	// once provides "once" semantics for Close.
	once sync.Once

	// wc is the open writer we're using.
	wc io.WriteCloser
}

// FrameTraceOption is an option for [NewFrameTrace].
type FrameTraceOption func(tr *FrameTrace)

// FrameTraceOptionBuffer overrides the default capture buffer size.
func FrameTraceOptionBuffer(count int) FrameTraceOption {
	return func(tr *FrameTrace) {
		tr.snaps = make(chan frameSnapshot, count)
	}
}

// NewFrameTrace creates a new [*FrameTrace] writing to wc.
func NewFrameTrace(wc io.WriteCloser, options ...FrameTraceOption) *FrameTrace {
	// Initialize the trace struct
	ctx, cancel := context.WithCancel(context.Background())
	const manyFrames = 4096
	tr := &FrameTrace{
		cancel:  cancel,
		dropped: atomic.Uint64{},
		errch:   make(chan error, 1),
		snaps:   make(chan frameSnapshot, manyFrames),
		once:    sync.Once{},
		wc:      wc,
	}
	for _, opt := range options {
		opt(tr)
	}

	// Start the worker and return
	go tr.saveLoop(ctx)
	return tr
}

// Dump records the given frame. Dump never blocks: when disk I/O
// cannot keep up, frames are dropped and counted instead.
func (tr *FrameTrace) Dump(frame *Frame) {
	data, err := serializeFrame(frame)
	if err != nil {
		tr.dropped.Add(1)
		return
	}
	select {
	case tr.snaps <- frameSnapshot{data: data}:
	default:
		tr.dropped.Add(1)
	}
}

// Dropped returns the number of frames dropped due to buffer overflow.
func (tr *FrameTrace) Dropped() uint64 {
	return tr.dropped.Load()
}

// serializeFrame encodes a frame as Ethernet plus a fixed body:
// one type byte, a big-endian uint32 sequence number, the checksum
// byte, and the raw payload.
func serializeFrame(frame *Frame) ([]byte, error) {
	body := make([]byte, 0, 6+len(frame.Payload))
	body = append(body, byte(frame.Type))
	body = binary.BigEndian.AppendUint32(body, uint32(frame.Seq))
	body = append(body, frame.Checksum())
	body = append(body, frame.Payload...)

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(frame.SrcMAC[:]),
		DstMAC:       net.HardwareAddr(frame.DstMAC[:]),
		EthernetType: layers.EthernetType(frameEtherType),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(body)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// saveLoop is the loop that dumps frames
func (tr *FrameTrace) saveLoop(ctx context.Context) {
	// Write the PCAP header
	const snapLen = 65535
	w := pcapgo.NewWriter(tr.wc)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		tr.errch <- err
		return
	}

	// Loop until we're done and write each entry.
	//
	// Make sure we drain the buffer on exit.
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case snap := <-tr.snaps:
					if err := tr.saveFrame(w, snap); err != nil {
						tr.errch <- err
						return
					}
				default:
					tr.errch <- nil
					return
				}
			}

		case snap := <-tr.snaps:
			if err := tr.saveFrame(w, snap); err != nil {
				tr.errch <- err
				return
			}
		}
	}
}

func (tr *FrameTrace) saveFrame(w *pcapgo.Writer, snap frameSnapshot) error {
	ci := gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  len(snap.data),
		Length:         len(snap.data),
		InterfaceIndex: 0,
		AncillaryData:  []any{},
	}
	return w.WritePacket(ci, snap.data)
}

// Close interrupts the background goroutine and waits for it to join
// before closing the capture file.
func (tr *FrameTrace) Close() (err error) {
	tr.once.Do(func() {
		// notify the background goroutine to terminate
		tr.cancel()

		// wait for the goroutine to terminate
		err1 := <-tr.errch

		// close the open capture file
		err2 := tr.wc.Close()

		// assemble a common error (nil on success)
		err = errors.Join(err1, err2)
	})
	return
}
