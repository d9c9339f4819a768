// SPDX-License-Identifier: GPL-3.0-or-later

package lansim_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wirelab/lansim"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lansim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("overlays_on_defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
transmission_delay: 5ms
max_send_retries: 7
corruption_probability: 0.5
window_size: 8
`)
		cfg, err := lansim.LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 5*time.Millisecond, cfg.TransmissionDelay)
		assert.Equal(t, 7, cfg.MaxSendRetries)
		assert.Equal(t, 0.5, cfg.CorruptionProbability)
		assert.Equal(t, 8, cfg.WindowSize)

		// untouched fields keep their defaults
		defaults := lansim.DefaultConfig()
		assert.Equal(t, defaults.SlotTime, cfg.SlotTime)
		assert.Equal(t, defaults.ArpTimeout, cfg.ArpTimeout)
		assert.Equal(t, defaults.DefaultTTL, cfg.DefaultTTL)
	})

	t.Run("empty_file_yields_defaults", func(t *testing.T) {
		path := writeConfigFile(t, "")
		cfg, err := lansim.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, lansim.DefaultConfig(), cfg)
	})

	t.Run("explicit_zero_probability", func(t *testing.T) {
		path := writeConfigFile(t, "collision_probability: 0\n")
		cfg, err := lansim.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 0.0, cfg.CollisionProbability)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := lansim.LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
		require.Error(t, err)
	})

	t.Run("bad_yaml", func(t *testing.T) {
		path := writeConfigFile(t, ":\n\t- not yaml")
		_, err := lansim.LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("bad_duration", func(t *testing.T) {
		path := writeConfigFile(t, "slot_time: twenty\n")
		_, err := lansim.LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("rejects_zero_window", func(t *testing.T) {
		path := writeConfigFile(t, "window_size: 0\n")
		_, err := lansim.LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("rejects_probability_above_one", func(t *testing.T) {
		path := writeConfigFile(t, "medium_busy_probability: 1.5\n")
		_, err := lansim.LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("rejects_inverted_busy_window", func(t *testing.T) {
		path := writeConfigFile(t, "busy_window_min: 80ms\nbusy_window_max: 40ms\n")
		_, err := lansim.LoadConfig(path)
		require.Error(t, err)
	})
}
