//go:build linux

// Package system implements the kernel helpers outside the radio surface:
// route and address flushing, ARP cache maintenance and the mDNS responder
// restart hook.
package system

import (
	"bufio"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lcalzada-xor/linkd/internal/adapters/netannounce"
	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

// Tools implements ports.SystemTools against the live kernel.
type Tools struct {
	mdnsRestart []string
}

// New creates the helper set. mdnsRestartCmd is the full command line used
// to bounce the local mDNS responder.
func New(mdnsRestartCmd string) *Tools {
	return &Tools{mdnsRestart: strings.Fields(mdnsRestartCmd)}
}

// rtEntry mirrors struct rtentry for the routing table ioctls.
type rtEntry struct {
	pad1    uint64
	dst     unix.RawSockaddrInet4
	gateway unix.RawSockaddrInet4
	genmask unix.RawSockaddrInet4
	flags   uint16
	pad2    int16
	pad3    uint64
	pad4    uintptr
	metric  int16
	dev     *byte
	mtu     uint64
	window  uint64
	irtt    uint16
}

const (
	rtfUp      = 0x0001
	rtfGateway = 0x0002
)

func routeSocket() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
}

// DeleteDefaultRoute removes the current default route, tolerating its
// absence.
func (t *Tools) DeleteDefaultRoute() error {
	fd, err := routeSocket()
	if err != nil {
		return &domain.IoError{Op: "socket", Errno: err}
	}
	defer unix.Close(fd)

	var rt rtEntry
	rt.dst.Family = unix.AF_INET
	rt.gateway.Family = unix.AF_INET
	rt.genmask.Family = unix.AF_INET
	rt.flags = rtfUp

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCDELRT,
		uintptr(unsafe.Pointer(&rt)))
	if errno != 0 && errno != unix.ESRCH {
		return &domain.IoError{Op: "delete default route", Errno: errno}
	}
	return nil
}

// FlushRoutes drops every route bound to iface.
func (t *Tools) FlushRoutes(iface string) error {
	f, err := os.Open("/proc/net/route")
	if err != nil {
		return err
	}
	defer f.Close()

	fd, err := routeSocket()
	if err != nil {
		return &domain.IoError{Op: "socket", Errno: err}
	}
	defer unix.Close(fd)

	dev := append([]byte(iface), 0)
	scanner := bufio.NewScanner(f)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 8 || fields[0] != iface {
			continue
		}
		var rt rtEntry
		rt.dst.Family = unix.AF_INET
		copy(rt.dst.Addr[:], hexLEAddr(fields[1]))
		rt.gateway.Family = unix.AF_INET
		copy(rt.gateway.Addr[:], hexLEAddr(fields[2]))
		rt.genmask.Family = unix.AF_INET
		copy(rt.genmask.Addr[:], hexLEAddr(fields[7]))
		rt.flags = rtfUp
		rt.dev = &dev[0]

		unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCDELRT,
			uintptr(unsafe.Pointer(&rt)))
	}
	return scanner.Err()
}

// hexLEAddr decodes the little-endian hex addresses of /proc/net/route.
func hexLEAddr(s string) []byte {
	if len(s) != 8 {
		return make([]byte, 4)
	}
	var out [4]byte
	for i := 0; i < 4; i++ {
		var b byte
		for _, c := range []byte(s[i*2 : i*2+2]) {
			b <<= 4
			switch {
			case c >= '0' && c <= '9':
				b |= c - '0'
			case c >= 'a' && c <= 'f':
				b |= c - 'a' + 10
			case c >= 'A' && c <= 'F':
				b |= c - 'A' + 10
			}
		}
		out[3-i] = b
	}
	return out[:]
}

// FlushAddresses clears the IPv4 address of iface.
func (t *Tools) FlushAddresses(iface string) error {
	fd, err := routeSocket()
	if err != nil {
		return &domain.IoError{Op: "socket", Errno: err}
	}
	defer unix.Close(fd)

	req, err := unix.NewIfreq(iface)
	if err != nil {
		return err
	}
	req.SetInet4Addr([]byte{0, 0, 0, 0})
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFADDR, req); err != nil {
		return &domain.IoError{Op: "clear address", Errno: err}
	}
	return nil
}

// arpReq mirrors struct arpreq for SIOCDARP.
type arpReq struct {
	pa      unix.RawSockaddrInet4
	ha      unix.RawSockaddr
	flags   int32
	netmask unix.RawSockaddrInet4
	dev     [16]byte
}

// FlushARPCache walks /proc/net/arp and deletes every listed entry.
func (t *Tools) FlushARPCache() error {
	f, err := os.Open("/proc/net/arp")
	if err != nil {
		return err
	}
	defer f.Close()

	fd, err := routeSocket()
	if err != nil {
		return &domain.IoError{Op: "socket", Errno: err}
	}
	defer unix.Close(fd)

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		ip := net.ParseIP(fields[0]).To4()
		if ip == nil {
			continue
		}
		var req arpReq
		req.pa.Family = unix.AF_INET
		copy(req.pa.Addr[:], ip)
		copy(req.dev[:], fields[5])
		unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCDARP,
			uintptr(unsafe.Pointer(&req)))
	}
	return scanner.Err()
}

// RestartMDNSResponder bounces the local responder so it re-announces on
// the new address.
func (t *Tools) RestartMDNSResponder() error {
	if len(t.mdnsRestart) == 0 {
		return nil
	}
	cmd := exec.Command(t.mdnsRestart[0], t.mdnsRestart[1:]...)
	if err := cmd.Run(); err != nil {
		slog.Warn("mdns responder restart failed", "err", err)
		return err
	}
	return nil
}

// SetupStaticIPv4 applies the device's static configuration record:
// address, netmask and, when present, the default gateway.
func (t *Tools) SetupStaticIPv4(iface string, cfg domain.IPConfig) error {
	ip4 := cfg.Address.To4()
	if ip4 == nil {
		return domain.ErrInvalidArgument
	}
	fd, err := routeSocket()
	if err != nil {
		return &domain.IoError{Op: "socket", Errno: err}
	}
	defer unix.Close(fd)

	req, err := unix.NewIfreq(iface)
	if err != nil {
		return err
	}
	req.SetInet4Addr(ip4)
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFADDR, req); err != nil {
		return &domain.IoError{Op: "set address", Errno: err}
	}

	if len(cfg.Netmask) == 4 {
		req, err = unix.NewIfreq(iface)
		if err != nil {
			return err
		}
		req.SetInet4Addr(cfg.Netmask)
		if err := unix.IoctlIfreq(fd, unix.SIOCSIFNETMASK, req); err != nil {
			return &domain.IoError{Op: "set netmask", Errno: err}
		}
	}

	if gw := cfg.Gateway.To4(); gw != nil {
		dev := append([]byte(iface), 0)
		var rt rtEntry
		rt.dst.Family = unix.AF_INET
		rt.genmask.Family = unix.AF_INET
		rt.gateway.Family = unix.AF_INET
		copy(rt.gateway.Addr[:], gw)
		rt.flags = rtfUp | rtfGateway
		rt.dev = &dev[0]
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCADDRT,
			uintptr(unsafe.Pointer(&rt)))
		if errno != 0 && errno != unix.EEXIST {
			return &domain.IoError{Op: "add default route", Errno: errno}
		}
	}
	return nil
}

// AnnounceAddress sends a gratuitous ARP for the new address.
func (t *Tools) AnnounceAddress(iface string, hw net.HardwareAddr, ip net.IP) error {
	return netannounce.Announce(iface, hw, ip)
}
