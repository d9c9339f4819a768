// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Endpoint is anything a [*Link] can deliver frames to: a [*Device],
// a [*Hub], or a [*Router].
type Endpoint interface {
	// Name returns the endpoint's topology name.
	Name() string

	// ReceiveFrame handles one inbound frame. The frame is always a
	// private copy; the endpoint may mutate it freely.
	ReceiveFrame(frame *Frame, from Endpoint)
}

// Link models a shared channel between exactly two endpoints with
// carrier sense, collision detection, and backoff (CSMA/CD).
//
// The busy deadline and the transmitting set are shared across every
// endpoint on the link; the whole arbitrate-and-mark-busy sequence
// runs under one mutex so two senders can never both observe "free".
//
// Construct using [NewLink].
type Link struct {
	// cfg holds the simulation tunables.
	cfg Config

	// faults supplies the busy/collision/corruption decisions.
	faults FaultModel

	// logger receives the link's events.
	logger Logger

	// name is the link's topology name.
	name string

	// observer, when set, sees every successfully delivered frame.
	observer func(*Frame)

	// mu guards the fields below.
	mu sync.Mutex

	// endpoint1 and endpoint2 are the attached endpoints.
	endpoint1 Endpoint
	endpoint2 Endpoint

	// busyUntil is the deadline after which the medium is free again.
	busyUntil time.Time

	// transmitting tracks endpoints currently on the wire; more than
	// one means a collision.
	transmitting map[Endpoint]struct{}
}

// LinkOption is an option for [NewLink].
type LinkOption func(l *Link)

// LinkOptionConfig overrides the default [Config].
func LinkOptionConfig(cfg Config) LinkOption {
	return func(l *Link) {
		l.cfg = cfg
	}
}

// LinkOptionFaults overrides the default [FaultModel].
func LinkOptionFaults(fm FaultModel) LinkOption {
	return func(l *Link) {
		l.faults = fm
	}
}

// LinkOptionLogger overrides the default no-op [Logger].
func LinkOptionLogger(logger Logger) LinkOption {
	return func(l *Link) {
		l.logger = logger
	}
}

// LinkOptionObserver registers a hook seeing every frame the link
// delivers, after any induced corruption. [*FrameTrace.Dump] fits here.
func LinkOptionObserver(fn func(*Frame)) LinkOption {
	return func(l *Link) {
		l.observer = fn
	}
}

// NewLink creates a new unattached [*Link]. Without options it uses
// [DefaultConfig] and a [NewRandomFaults] stream named after the link.
func NewLink(name string, options ...LinkOption) *Link {
	l := &Link{
		cfg:          DefaultConfig(),
		logger:       NopLogger(),
		name:         name,
		transmitting: make(map[Endpoint]struct{}),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.faults == nil {
		l.faults = NewRandomFaults("link."+name, l.cfg)
	}
	l.logger = l.logger.WithField("link", name)
	return l
}

// Name returns the link's topology name.
func (l *Link) Name() string {
	return l.name
}

// Attach connects an endpoint to the first free slot. It fails when
// both slots are taken.
func (l *Link) Attach(ep Endpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.endpoint1 == nil:
		l.endpoint1 = ep
	case l.endpoint2 == nil:
		l.endpoint2 = ep
	default:
		return errors.Errorf("lansim: link %s already has two endpoints", l.name)
	}
	l.logger.Infof("attached endpoint %s", ep.Name())
	return nil
}

// Detach disconnects an endpoint. Detaching an endpoint that is not
// attached is a no-op.
func (l *Link) Detach(ep Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.endpoint1 == ep {
		l.endpoint1 = nil
	}
	if l.endpoint2 == ep {
		l.endpoint2 = nil
	}
	delete(l.transmitting, ep)
}

// Endpoints returns the two attached endpoints (either may be nil).
func (l *Link) Endpoints() (Endpoint, Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endpoint1, l.endpoint2
}

// HasEndpoint reports whether ep is attached to this link.
func (l *Link) HasEndpoint(ep Endpoint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endpoint1 == ep || l.endpoint2 == ep
}

// Busy reports whether the medium is currently busy (carrier sense).
func (l *Link) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.busyUntil)
}

// Transmit sends a frame from source to the other endpoint using
// CSMA/CD arbitration.
//
// Up to the configured number of attempts:
//
// 1. Carrier sense: a busy medium costs one attempt and one slot time,
// but never counts as a collision.
//
// 2. A free medium is marked busy for a randomized window and the
// transmission starts.
//
// 3. A collision (induced by the fault model, or real when another
// endpoint is on the wire) triggers a backoff scaled by attempt count.
//
// 4. DATA frames may be corrupted in flight: the delivered copy's
// payload mutates while its checksum stays stale, so the receiver's
// ARQ layer sees the damage, not this layer.
//
// On success the (possibly corrupted) copy reaches the destination's
// [Endpoint.ReceiveFrame]. Exhausting the budget returns
// [ErrMaxAttempts]; retrying is the ARQ layer's business.
func (l *Link) Transmit(frame *Frame, source Endpoint) error {
	// 1. identify the destination
	l.mu.Lock()
	var destination Endpoint
	switch source {
	case l.endpoint1:
		destination = l.endpoint2
	case l.endpoint2:
		destination = l.endpoint1
	default:
		l.mu.Unlock()
		return errors.Wrapf(ErrNotConnected, "link %s: %s", l.name, source.Name())
	}
	l.mu.Unlock()
	if destination == nil {
		return errors.Wrapf(ErrNoDestination, "link %s", l.name)
	}

	// 2. the wire carries a copy, never the caller's frame
	transmitted := frame.Clone()

	// 3. arbitrate
	for attempt := 0; attempt < l.cfg.MaxTransmitAttempts; attempt++ {
		// 3.1. carrier sense and mark-busy as one atomic step
		l.mu.Lock()
		now := time.Now()
		if now.Before(l.busyUntil) || l.faults.MediumBusy() {
			l.mu.Unlock()
			l.logger.Debugf("%s sensed medium busy for frame %d", source.Name(), frame.Seq)
			time.Sleep(l.cfg.SlotTime)
			continue
		}
		l.busyUntil = now.Add(l.faults.BusyWindow())
		l.transmitting[source] = struct{}{}
		l.mu.Unlock()

		// 3.2. propagation delay
		time.Sleep(l.cfg.TransmissionDelay)

		// 3.3. collision detection: induced, or real concurrent sender
		collided := l.faults.Collision(attempt)
		l.mu.Lock()
		if len(l.transmitting) > 1 {
			collided = true
		}
		delete(l.transmitting, source)
		l.mu.Unlock()
		if collided {
			backoff := l.faults.Backoff(attempt)
			l.logger.Warnf("collision during %s's transmission of frame %d, backing off %v",
				source.Name(), frame.Seq, backoff)
			time.Sleep(backoff)
			continue
		}

		// 3.4. possibly corrupt DATA in flight
		if transmitted.Type == FrameData && l.faults.Corrupt() {
			transmitted.Corrupt()
			l.logger.Warnf("error introduced in frame %d", frame.Seq)
		}

		// 3.5. deliver
		if l.observer != nil {
			l.observer(transmitted)
		}
		l.logger.Debugf("frame %d delivered from %s to %s",
			frame.Seq, source.Name(), destination.Name())
		destination.ReceiveFrame(transmitted, source)
		return nil
	}

	l.logger.Errorf("%s exceeded %d transmission attempts for frame %d",
		source.Name(), l.cfg.MaxTransmitAttempts, frame.Seq)
	return errors.Wrapf(ErrMaxAttempts, "link %s: frame %d", l.name, frame.Seq)
}
