// SPDX-License-Identifier: GPL-3.0-or-later

package lansim_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wirelab/lansim"
)

func TestRouteTableLongestPrefixMatch(t *testing.T) {
	var table lansim.RouteTable
	table.Add(lansim.RouteEntry{
		Prefix:    netip.MustParsePrefix("10.0.0.0/8"),
		NextHop:   netip.MustParseAddr("10.0.0.254"),
		Interface: "eth0",
		Source:    lansim.RouteStatic,
	})
	table.Add(lansim.RouteEntry{
		Prefix:    netip.MustParsePrefix("10.0.1.0/24"),
		Interface: "eth1",
		Source:    lansim.RouteConnected,
	})

	// the /24 wins for addresses it covers
	entry, found := table.Lookup(netip.MustParseAddr("10.0.1.5"))
	require.True(t, found)
	assert.Equal(t, "eth1", entry.Interface)
	assert.True(t, entry.Direct())

	// addresses outside the /24 fall back to the /8
	entry, found = table.Lookup(netip.MustParseAddr("10.0.2.5"))
	require.True(t, found)
	assert.Equal(t, "eth0", entry.Interface)
	assert.False(t, entry.Direct())
	assert.Equal(t, netip.MustParseAddr("10.0.0.254"), entry.NextHop)

	// no covering prefix at all
	_, found = table.Lookup(netip.MustParseAddr("192.168.1.1"))
	assert.False(t, found)
}

func TestRouteTableEqualLengthPrefixes(t *testing.T) {
	var table lansim.RouteTable
	table.Add(lansim.RouteEntry{
		Prefix:    netip.MustParsePrefix("10.0.0.0/16"),
		Interface: "first",
	})
	table.Add(lansim.RouteEntry{
		Prefix:    netip.MustParsePrefix("10.1.0.0/16"),
		Interface: "other",
	})

	entry, found := table.Lookup(netip.MustParseAddr("10.0.9.9"))
	require.True(t, found)
	assert.Equal(t, "first", entry.Interface)

	entry, found = table.Lookup(netip.MustParseAddr("10.1.9.9"))
	require.True(t, found)
	assert.Equal(t, "other", entry.Interface)
}

func TestRouteTableAddReplacesSamePrefix(t *testing.T) {
	var table lansim.RouteTable
	table.Add(lansim.RouteEntry{
		Prefix:    netip.MustParsePrefix("10.0.1.0/24"),
		Interface: "eth0",
	})
	table.Add(lansim.RouteEntry{
		Prefix:    netip.MustParsePrefix("10.0.1.0/24"),
		Interface: "eth1",
	})

	assert.Equal(t, 1, table.Len())
	entry, found := table.Lookup(netip.MustParseAddr("10.0.1.1"))
	require.True(t, found)
	assert.Equal(t, "eth1", entry.Interface)
}

func TestRouteTableRemove(t *testing.T) {
	var table lansim.RouteTable
	prefix := netip.MustParsePrefix("10.0.1.0/24")
	table.Add(lansim.RouteEntry{Prefix: prefix, Interface: "eth0"})

	assert.True(t, table.Remove(prefix))
	assert.False(t, table.Remove(prefix))
	assert.Zero(t, table.Len())
	_, found := table.Lookup(netip.MustParseAddr("10.0.1.1"))
	assert.False(t, found)
}

func TestRouteTableEntriesSnapshot(t *testing.T) {
	var table lansim.RouteTable
	table.Add(lansim.RouteEntry{Prefix: netip.MustParsePrefix("10.0.1.0/24")})
	table.Add(lansim.RouteEntry{Prefix: netip.MustParsePrefix("10.0.2.0/24")})

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, netip.MustParsePrefix("10.0.1.0/24"), entries[0].Prefix)
	assert.False(t, entries[0].Timestamp.IsZero(), "Add stamps entries")

	// mutating the snapshot must not touch the table
	entries[0].Interface = "mutated"
	fresh := table.Entries()
	assert.Empty(t, fresh[0].Interface)
}

func TestRouteSourceString(t *testing.T) {
	assert.Equal(t, "STATIC", lansim.RouteStatic.String())
	assert.Equal(t, "CONNECTED", lansim.RouteConnected.String())
	assert.Equal(t, "UNKNOWN", lansim.RouteSource(99).String())
}
