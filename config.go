// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries the tunables of the simulation. The zero value is
// not usable: start from [DefaultConfig] or load one with [LoadConfig].
type Config struct {
	// TransmissionDelay is the simulated propagation delay per frame.
	TransmissionDelay time.Duration

	// SlotTime is the fixed carrier-sense backoff interval and the
	// unit scaled by attempt count after a collision.
	SlotTime time.Duration

	// BusyWindowMin and BusyWindowMax bound the randomized duration the
	// medium stays busy during one transmission.
	BusyWindowMin time.Duration
	BusyWindowMax time.Duration

	// MaxTransmitAttempts bounds the CSMA/CD loop on a link.
	MaxTransmitAttempts int

	// MediumBusyProbability is the chance carrier sense finds the
	// medium artificially busy.
	MediumBusyProbability float64

	// CollisionProbability is the chance a transmission collides.
	CollisionProbability float64

	// CorruptionProbability is the chance a DATA frame is corrupted on
	// the wire (checksum left stale).
	CorruptionProbability float64

	// BitErrorRate is the chance a Stop-and-Wait send goes
	// unacknowledged.
	BitErrorRate float64

	// MaxSendRetries bounds per-frame ARQ retries before the whole
	// message fails.
	MaxSendRetries int

	// RetransmitTimeout is the Go-Back-N retransmission timeout.
	RetransmitTimeout time.Duration

	// RetryScanInterval is how often the background timer scans the
	// unacknowledged-frame table.
	RetryScanInterval time.Duration

	// WindowSize is the Go-Back-N sliding window size.
	WindowSize int

	// ChunkSize is the number of payload bytes per DATA frame.
	ChunkSize int

	// ArpTimeout is how long a dynamic ARP entry stays fresh.
	ArpTimeout time.Duration

	// ArpTableSize caps the ARP cache; the oldest dynamic entry is
	// evicted when full.
	ArpTableSize int

	// DefaultTTL is the initial hop budget of outbound packets.
	DefaultTTL int
}

// DefaultConfig returns the default simulation tunables.
func DefaultConfig() Config {
	return Config{
		TransmissionDelay:     10 * time.Millisecond,
		SlotTime:              20 * time.Millisecond,
		BusyWindowMin:         20 * time.Millisecond,
		BusyWindowMax:         50 * time.Millisecond,
		MaxTransmitAttempts:   5,
		MediumBusyProbability: 0.2,
		CollisionProbability:  0.1,
		CorruptionProbability: 0.2,
		BitErrorRate:          0.01,
		MaxSendRetries:        3,
		RetransmitTimeout:     time.Second,
		RetryScanInterval:     100 * time.Millisecond,
		WindowSize:            4,
		ChunkSize:             1,
		ArpTimeout:            5 * time.Minute,
		ArpTableSize:          128,
		DefaultTTL:            64,
	}
}

// configYAML is the on-disk shape of [Config]. Durations are strings
// in [time.ParseDuration] form (e.g., "20ms"); absent fields keep
// their defaults.
type configYAML struct {
	TransmissionDelay     string   `yaml:"transmission_delay"`
	SlotTime              string   `yaml:"slot_time"`
	BusyWindowMin         string   `yaml:"busy_window_min"`
	BusyWindowMax         string   `yaml:"busy_window_max"`
	MaxTransmitAttempts   *int     `yaml:"max_transmit_attempts"`
	MediumBusyProbability *float64 `yaml:"medium_busy_probability"`
	CollisionProbability  *float64 `yaml:"collision_probability"`
	CorruptionProbability *float64 `yaml:"corruption_probability"`
	BitErrorRate          *float64 `yaml:"bit_error_rate"`
	MaxSendRetries        *int     `yaml:"max_send_retries"`
	RetransmitTimeout     string   `yaml:"retransmit_timeout"`
	RetryScanInterval     string   `yaml:"retry_scan_interval"`
	WindowSize            *int     `yaml:"window_size"`
	ChunkSize             *int     `yaml:"chunk_size"`
	ArpTimeout            string   `yaml:"arp_timeout"`
	ArpTableSize          *int     `yaml:"arp_table_size"`
	DefaultTTL            *int     `yaml:"default_ttl"`
}

// LoadConfig reads a YAML file and overlays it on [DefaultConfig].
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parseConfig(data)
}

// parseConfig overlays YAML bytes on [DefaultConfig].
func parseConfig(data []byte) (Config, error) {
	var raw configYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Wrap(err, "lansim: cannot parse config")
	}

	cfg := DefaultConfig()
	durations := []struct {
		value string
		field *time.Duration
	}{
		{raw.TransmissionDelay, &cfg.TransmissionDelay},
		{raw.SlotTime, &cfg.SlotTime},
		{raw.BusyWindowMin, &cfg.BusyWindowMin},
		{raw.BusyWindowMax, &cfg.BusyWindowMax},
		{raw.RetransmitTimeout, &cfg.RetransmitTimeout},
		{raw.RetryScanInterval, &cfg.RetryScanInterval},
		{raw.ArpTimeout, &cfg.ArpTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return Config{}, errors.Wrap(err, "lansim: cannot parse config")
		}
		*d.field = parsed
	}

	ints := []struct {
		value *int
		field *int
	}{
		{raw.MaxTransmitAttempts, &cfg.MaxTransmitAttempts},
		{raw.MaxSendRetries, &cfg.MaxSendRetries},
		{raw.WindowSize, &cfg.WindowSize},
		{raw.ChunkSize, &cfg.ChunkSize},
		{raw.ArpTableSize, &cfg.ArpTableSize},
		{raw.DefaultTTL, &cfg.DefaultTTL},
	}
	for _, i := range ints {
		if i.value != nil {
			*i.field = *i.value
		}
	}

	floats := []struct {
		value *float64
		field *float64
	}{
		{raw.MediumBusyProbability, &cfg.MediumBusyProbability},
		{raw.CollisionProbability, &cfg.CollisionProbability},
		{raw.CorruptionProbability, &cfg.CorruptionProbability},
		{raw.BitErrorRate, &cfg.BitErrorRate},
	}
	for _, f := range floats {
		if f.value != nil {
			*f.field = *f.value
		}
	}

	return cfg, cfg.validate()
}

// validate rejects configs that would wedge or crash the simulation.
func (c Config) validate() error {
	switch {
	case c.MaxTransmitAttempts < 1:
		return errors.New("lansim: max_transmit_attempts must be >= 1")
	case c.MaxSendRetries < 1:
		return errors.New("lansim: max_send_retries must be >= 1")
	case c.WindowSize < 1:
		return errors.New("lansim: window_size must be >= 1")
	case c.ChunkSize < 1:
		return errors.New("lansim: chunk_size must be >= 1")
	case c.ArpTableSize < 1:
		return errors.New("lansim: arp_table_size must be >= 1")
	case c.DefaultTTL < 1:
		return errors.New("lansim: default_ttl must be >= 1")
	case c.BusyWindowMax < c.BusyWindowMin:
		return errors.New("lansim: busy_window_max must be >= busy_window_min")
	}
	probs := []float64{
		c.MediumBusyProbability, c.CollisionProbability,
		c.CorruptionProbability, c.BitErrorRate,
	}
	for _, p := range probs {
		if p < 0 || p > 1 {
			return errors.New("lansim: probabilities must be within [0, 1]")
		}
	}
	return nil
}
