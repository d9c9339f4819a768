// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubnetMask(t *testing.T) {
	cases := []struct {
		mask string
		bits int
	}{
		{"255.255.255.255", 32},
		{"255.255.255.0", 24},
		{"255.255.252.0", 22},
		{"255.0.0.0", 8},
		{"0.0.0.0", 0},
	}
	for _, tc := range cases {
		t.Run(tc.mask, func(t *testing.T) {
			bits, err := parseSubnetMask(tc.mask)
			require.NoError(t, err)
			assert.Equal(t, tc.bits, bits)
		})
	}
}

func TestParseSubnetMaskRejects(t *testing.T) {
	for _, mask := range []string{
		"255.0.255.0",   // non-contiguous
		"0.255.0.0",     // non-contiguous
		"255.255.255",   // not dotted quad
		"ffff::",        // not IPv4
		"banana",        // garbage
	} {
		t.Run(mask, func(t *testing.T) {
			_, err := parseSubnetMask(mask)
			require.Error(t, err)
		})
	}
}
