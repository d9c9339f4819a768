// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"sync"
	"time"

	"github.com/iti/rngstream"
)

// FaultModel supplies the probabilistic decisions of the simulation:
// artificial medium-busy periods, collisions, bit-level corruption,
// and lost acknowledgments. Components receive a FaultModel at
// construction so tests can force deterministic outcomes.
type FaultModel interface {
	// MediumBusy reports whether carrier sense should find the medium
	// artificially busy.
	MediumBusy() bool

	// Collision reports whether the transmission collides. The attempt
	// count starts at zero.
	Collision(attempt int) bool

	// Corrupt reports whether a DATA frame is corrupted on the wire.
	Corrupt() bool

	// AckLost reports whether a Stop-and-Wait send goes unacknowledged.
	AckLost() bool

	// Backoff returns how long to wait after the given collision
	// attempt before retrying.
	Backoff(attempt int) time.Duration

	// BusyWindow returns how long the medium stays busy during one
	// transmission.
	BusyWindow() time.Duration
}

// NewRandomFaults returns the production [FaultModel]: decisions drawn
// from a named reproducible random stream with probabilities taken
// from cfg. A run that creates its components in the same order sees
// the same fault sequence, which keeps simulations replayable.
func NewRandomFaults(name string, cfg Config) FaultModel {
	return &randomFaults{
		cfg: cfg,
		rng: rngstream.New(name),
	}
}

// randomFaults implements [FaultModel] over a [rngstream.RngStream].
type randomFaults struct {
	cfg Config
	mu  sync.Mutex
	rng *rngstream.RngStream
}

var _ FaultModel = &randomFaults{}

// randU01 draws one uniform sample under the mutex; the underlying
// stream is not safe for concurrent use.
func (rf *randomFaults) randU01() float64 {
	rf.mu.Lock()
	v := rf.rng.RandU01()
	rf.mu.Unlock()
	return v
}

// MediumBusy implements [FaultModel].
func (rf *randomFaults) MediumBusy() bool {
	return rf.randU01() < rf.cfg.MediumBusyProbability
}

// Collision implements [FaultModel].
func (rf *randomFaults) Collision(attempt int) bool {
	return rf.randU01() < rf.cfg.CollisionProbability
}

// Corrupt implements [FaultModel].
func (rf *randomFaults) Corrupt() bool {
	return rf.randU01() < rf.cfg.CorruptionProbability
}

// AckLost implements [FaultModel].
func (rf *randomFaults) AckLost() bool {
	return rf.randU01() < rf.cfg.BitErrorRate
}

// Backoff implements [FaultModel]: a random fraction of one slot time
// scaled by the attempt count (exponential-style backoff).
func (rf *randomFaults) Backoff(attempt int) time.Duration {
	return time.Duration(rf.randU01() * float64(rf.cfg.SlotTime) * float64(attempt+1))
}

// BusyWindow implements [FaultModel]: uniform within the configured
// busy-window bounds.
func (rf *randomFaults) BusyWindow() time.Duration {
	span := float64(rf.cfg.BusyWindowMax - rf.cfg.BusyWindowMin)
	return rf.cfg.BusyWindowMin + time.Duration(rf.randU01()*span)
}

// Faultless is a [FaultModel] that never injects a fault. Useful for
// tests and for modelling a perfect medium.
type Faultless struct{}

var _ FaultModel = Faultless{}

// MediumBusy implements [FaultModel].
func (Faultless) MediumBusy() bool { return false }

// Collision implements [FaultModel].
func (Faultless) Collision(attempt int) bool { return false }

// Corrupt implements [FaultModel].
func (Faultless) Corrupt() bool { return false }

// AckLost implements [FaultModel].
func (Faultless) AckLost() bool { return false }

// Backoff implements [FaultModel].
func (Faultless) Backoff(attempt int) time.Duration { return 0 }

// BusyWindow implements [FaultModel].
func (Faultless) BusyWindow() time.Duration { return 0 }
