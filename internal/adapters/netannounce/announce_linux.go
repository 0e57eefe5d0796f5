//go:build linux

// Package netannounce sends gratuitous ARP frames over a raw AF_PACKET
// socket so peers refresh their caches after an address change.
package netannounce

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"
)

var broadcastHW = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Announce broadcasts a gratuitous ARP request for ip from iface.
func Announce(iface string, hw net.HardwareAddr, ip net.IP) error {
	frame, err := buildGratuitousARP(hw, ip)
	if err != nil {
		return err
	}
	return sendRaw(iface, frame)
}

// buildGratuitousARP serializes an ARP request with sender and target set
// to our own address, the classic cache-refresh shape.
func buildGratuitousARP(hw net.HardwareAddr, ip net.IP) ([]byte, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("announce: %s is not an IPv4 address", ip)
	}

	eth := layers.Ethernet{
		SrcMAC:       hw,
		DstMAC:       broadcastHW,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   hw,
		SourceProtAddress: ip4,
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    ip4,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sendRaw(iface string, frame []byte) error {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return err
	}

	proto := htons(unix.ETH_P_ARP)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	addr := unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  ifi.Index,
		Halen:    6,
	}
	copy(addr.Addr[:], broadcastHW)
	return unix.Sendto(fd, frame, 0, &addr)
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
