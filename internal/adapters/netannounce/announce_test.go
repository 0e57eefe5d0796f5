//go:build linux

package netannounce

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGratuitousARP(t *testing.T) {
	hw, _ := net.ParseMAC("00:11:22:33:44:55")
	frame, err := buildGratuitousARP(hw, net.ParseIP("10.0.0.42"))
	require.NoError(t, err)

	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	require.NotNil(t, arpLayer)

	arp := arpLayer.(*layers.ARP)
	assert.Equal(t, uint16(layers.ARPRequest), arp.Operation)
	assert.Equal(t, []byte(hw), arp.SourceHwAddress)
	// Sender and target protocol addresses match: gratuitous.
	assert.Equal(t, arp.SourceProtAddress, arp.DstProtAddress)
	assert.Equal(t, net.IP(arp.SourceProtAddress).String(), "10.0.0.42")

	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, broadcastHW, eth.DstMAC)
}

func TestBuildGratuitousARP_RejectsIPv6(t *testing.T) {
	hw, _ := net.ParseMAC("00:11:22:33:44:55")
	_, err := buildGratuitousARP(hw, net.ParseIP("fe80::1"))
	assert.Error(t, err)
}
