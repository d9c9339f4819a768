// SPDX-License-Identifier: GPL-3.0-or-later

package lansim_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wirelab/lansim"
)

// fastConfig returns tunables scaled down so tests finish quickly.
func fastConfig() lansim.Config {
	cfg := lansim.DefaultConfig()
	cfg.TransmissionDelay = time.Millisecond
	cfg.SlotTime = time.Millisecond
	cfg.BusyWindowMin = time.Millisecond
	cfg.BusyWindowMax = 2 * time.Millisecond
	cfg.RetransmitTimeout = 50 * time.Millisecond
	cfg.RetryScanInterval = 10 * time.Millisecond
	return cfg
}

// frameSink is an [lansim.Endpoint] that records every frame it receives.
type frameSink struct {
	name   string
	mu     sync.Mutex
	frames []*lansim.Frame
}

func (s *frameSink) Name() string { return s.name }

func (s *frameSink) ReceiveFrame(frame *lansim.Frame, from lansim.Endpoint) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
}

func (s *frameSink) received() []*lansim.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*lansim.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// collideAlways induces a collision on every transmission attempt.
type collideAlways struct{ lansim.Faultless }

func (collideAlways) Collision(attempt int) bool { return true }

// corruptAlways corrupts every DATA frame on the wire.
type corruptAlways struct{ lansim.Faultless }

func (corruptAlways) Corrupt() bool { return true }

func newTestFrame(payload string, seq int) *lansim.Frame {
	src := lansim.MACAddress{0x02, 0, 0, 0, 0, 0x01}
	dst := lansim.MACAddress{0x02, 0, 0, 0, 0, 0x02}
	return lansim.NewFrame(src, dst, []byte(payload), seq, lansim.FrameData)
}

func TestLinkAttachDetach(t *testing.T) {
	link := lansim.NewLink("ab", lansim.LinkOptionConfig(fastConfig()),
		lansim.LinkOptionFaults(lansim.Faultless{}))
	a := &frameSink{name: "a"}
	b := &frameSink{name: "b"}
	c := &frameSink{name: "c"}

	require.NoError(t, link.Attach(a))
	require.NoError(t, link.Attach(b))
	require.Error(t, link.Attach(c), "a link carries exactly two endpoints")

	assert.True(t, link.HasEndpoint(a))
	assert.True(t, link.HasEndpoint(b))
	assert.False(t, link.HasEndpoint(c))

	link.Detach(a)
	assert.False(t, link.HasEndpoint(a))
	require.NoError(t, link.Attach(c))
}

func TestLinkTransmitNotConnected(t *testing.T) {
	link := lansim.NewLink("ab", lansim.LinkOptionConfig(fastConfig()),
		lansim.LinkOptionFaults(lansim.Faultless{}))
	stranger := &frameSink{name: "stranger"}

	err := link.Transmit(newTestFrame("x", 0), stranger)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lansim.ErrNotConnected))
}

func TestLinkTransmitNoDestination(t *testing.T) {
	link := lansim.NewLink("ab", lansim.LinkOptionConfig(fastConfig()),
		lansim.LinkOptionFaults(lansim.Faultless{}))
	a := &frameSink{name: "a"}
	require.NoError(t, link.Attach(a))

	err := link.Transmit(newTestFrame("x", 0), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lansim.ErrNoDestination))
}

func TestLinkTransmitDelivers(t *testing.T) {
	var observed []*lansim.Frame
	link := lansim.NewLink("ab",
		lansim.LinkOptionConfig(fastConfig()),
		lansim.LinkOptionFaults(lansim.Faultless{}),
		lansim.LinkOptionObserver(func(f *lansim.Frame) {
			observed = append(observed, f)
		}))
	a := &frameSink{name: "a"}
	b := &frameSink{name: "b"}
	require.NoError(t, link.Attach(a))
	require.NoError(t, link.Attach(b))

	frame := newTestFrame("hello", 3)
	require.NoError(t, link.Transmit(frame, a))

	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, []byte("hello"), got[0].Payload)
	assert.Equal(t, 3, got[0].Seq)
	assert.True(t, got[0].IsValid())
	require.Len(t, observed, 1)

	// the wire carries a copy: receiver-side mutation must not reach
	// the sender's frame
	got[0].Payload[0] = 'X'
	assert.Equal(t, []byte("hello"), frame.Payload)

	// the link is symmetric
	require.NoError(t, link.Transmit(newTestFrame("back", 0), b))
	require.Len(t, a.received(), 1)
}

func TestLinkTransmitCollisionExhaustsAttempts(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxTransmitAttempts = 3
	link := lansim.NewLink("ab",
		lansim.LinkOptionConfig(cfg),
		lansim.LinkOptionFaults(collideAlways{}))
	a := &frameSink{name: "a"}
	b := &frameSink{name: "b"}
	require.NoError(t, link.Attach(a))
	require.NoError(t, link.Attach(b))

	err := link.Transmit(newTestFrame("x", 0), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lansim.ErrMaxAttempts))
	assert.Empty(t, b.received())
}

func TestLinkTransmitCorruptsInFlight(t *testing.T) {
	link := lansim.NewLink("ab",
		lansim.LinkOptionConfig(fastConfig()),
		lansim.LinkOptionFaults(corruptAlways{}))
	a := &frameSink{name: "a"}
	b := &frameSink{name: "b"}
	require.NoError(t, link.Attach(a))
	require.NoError(t, link.Attach(b))

	frame := newTestFrame("hello", 0)
	require.NoError(t, link.Transmit(frame, a), "corruption is not a delivery failure")

	got := b.received()
	require.Len(t, got, 1)
	assert.False(t, got[0].IsValid(), "the receiver must see the damage")
	assert.True(t, frame.IsValid(), "the sender's frame must stay intact")
}

func TestLinkBusyInitiallyFalse(t *testing.T) {
	link := lansim.NewLink("ab", lansim.LinkOptionFaults(lansim.Faultless{}))
	assert.False(t, link.Busy())
}
