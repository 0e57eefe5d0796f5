//go:build linux

package radio

import (
	"context"
	"net"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// Control drives one interface through the wireless-extension and socket
// ioctl surface. It implements ports.Radio.
type Control struct {
	ctl *control
}

// New opens the ioctl surface for iface.
func New(iface string) (*Control, error) {
	ctl, err := openControl(iface)
	if err != nil {
		return nil, err
	}
	return &Control{ctl: ctl}, nil
}

// Close releases the control socket.
func (c *Control) Close() {
	c.ctl.close()
}

func (c *Control) iface() string { return c.ctl.iface }

// wrap converts an errno into the module error model. Drivers that reject a
// command with EOPNOTSUPP are treated as having silently accepted it; some
// cards do exactly that for commands they auto-apply.
func wrap(op string, err error) error {
	if err == nil || err == unix.EOPNOTSUPP {
		return nil
	}
	return &domain.IoError{Op: op, Errno: err}
}

func (c *Control) flags() (uint16, error) {
	req, err := unix.NewIfreq(c.iface())
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(c.ctl.fd, unix.SIOCGIFFLAGS, req); err != nil {
		return 0, err
	}
	return req.Uint16(), nil
}

func (c *Control) setFlags(f uint16) error {
	req, err := unix.NewIfreq(c.iface())
	if err != nil {
		return err
	}
	req.SetUint16(f)
	return unix.IoctlIfreq(c.ctl.fd, unix.SIOCSIFFLAGS, req)
}

// IsUp reports whether the interface is administratively up.
func (c *Control) IsUp() (bool, error) {
	f, err := c.flags()
	if err != nil {
		return false, wrap("get flags", err)
	}
	return f&unix.IFF_UP != 0, nil
}

// BringUp raises IFF_UP. Callers that may already be up should go through
// EnsureUp to avoid redundant flag writes.
func (c *Control) BringUp() error {
	f, err := c.flags()
	if err != nil {
		return wrap("get flags", err)
	}
	return wrap("set flags", c.setFlags(f|unix.IFF_UP))
}

// BringDown clears IFF_UP.
func (c *Control) BringDown() error {
	f, err := c.flags()
	if err != nil {
		return wrap("get flags", err)
	}
	return wrap("set flags", c.setFlags(f&^uint16(unix.IFF_UP)))
}

// ESSID reads the current network name.
func (c *Control) ESSID() (string, error) {
	buf := make([]byte, domain.ESSIDMaxSize+1)
	req := newIwreq(c.iface())
	req.setPoint(buf, 0)
	if err := c.ctl.ioctlIwreq(siocGIWESSID, &req); err != nil {
		return "", wrap("get essid", err)
	}
	n := int(req.pointLen())
	if n > len(buf) {
		n = len(buf)
	}
	return strings.TrimRight(string(buf[:n]), "\x00"), nil
}

// SetESSID installs a network name, capped at the driver maximum.
func (c *Control) SetESSID(essid string) error {
	if len(essid) > domain.ESSIDMaxSize {
		essid = essid[:domain.ESSIDMaxSize]
	}
	buf := []byte(essid)
	req := newIwreq(c.iface())
	// flags=1 means "essid is meaningful"; a single space with flags=0
	// would clear it, but we always pass the name explicitly.
	req.setPoint(buf, 1)
	return wrap("set essid", c.ctl.ioctlIwreq(siocSIWESSID, &req))
}

// Mode reads the current topology mode.
func (c *Control) Mode() (domain.WirelessMode, error) {
	req := newIwreq(c.iface())
	if err := c.ctl.ioctlIwreq(siocGIWMODE, &req); err != nil {
		return domain.ModeUnknown, wrap("get mode", err)
	}
	switch req.uint32() {
	case iwModeAdhoc:
		return domain.ModeAdHoc, nil
	case iwModeInfra:
		return domain.ModeInfrastructure, nil
	}
	return domain.ModeUnknown, nil
}

// SetMode switches the topology mode.
func (c *Control) SetMode(mode domain.WirelessMode) error {
	req := newIwreq(c.iface())
	switch mode {
	case domain.ModeAdHoc:
		req.setUint32(iwModeAdhoc)
	default:
		req.setUint32(iwModeInfra)
	}
	return wrap("set mode", c.ctl.ioctlIwreq(siocSIWMODE, &req))
}

// Frequency reads the current channel frequency in MHz.
func (c *Control) Frequency() (float64, error) {
	req := newIwreq(c.iface())
	if err := c.ctl.ioctlIwreq(siocGIWFREQ, &req); err != nil {
		return 0, wrap("get frequency", err)
	}
	m, e := req.freq()
	return iwFreqValue(m, e), nil
}

// SetFrequency tunes to a frequency in MHz (or a raw channel number when
// mhz < 1000).
func (c *Control) SetFrequency(mhz float64) error {
	req := newIwreq(c.iface())
	if mhz < 1000 {
		req.setFreq(int32(mhz), 0)
	} else {
		req.setFreq(int32(mhz*1e5), 1)
	}
	return wrap("set frequency", c.ctl.ioctlIwreq(siocSIWFREQ, &req))
}

// Bitrate reads the current bitrate in kb/s.
func (c *Control) Bitrate() (int, error) {
	req := newIwreq(c.iface())
	if err := c.ctl.ioctlIwreq(siocGIWRATE, &req); err != nil {
		return 0, wrap("get bitrate", err)
	}
	return int(req.param() / 1000), nil
}

// SetBitrate sets the bitrate in kb/s; values <= 0 mean automatic.
func (c *Control) SetBitrate(kbps int) error {
	req := newIwreq(c.iface())
	if kbps <= 0 {
		req.setParam(-1, false)
	} else {
		req.setParam(int32(kbps)*1000, true)
	}
	return wrap("set bitrate", c.ctl.ioctlIwreq(siocSIWRATE, &req))
}

// SetEncryptionKey installs WEP key material. An empty key disables
// encryption with the nokey flag. Open-system and shared-key always get an
// explicit mode bit; some cards conflate "open system" with "no WEP"
// otherwise.
func (c *Control) SetEncryptionKey(key []byte, auth domain.AuthMethod) error {
	req := newIwreq(c.iface())
	if len(key) == 0 {
		req.setPoint(nil, iwEncodeDisabled|iwEncodeNoKey)
		return wrap("set encode", c.ctl.ioctlIwreq(siocSIWENCODE, &req))
	}
	if len(key) > domain.EncodingTokenMax {
		key = key[:domain.EncodingTokenMax]
	}
	var flags uint16
	switch auth {
	case domain.AuthSharedKey:
		flags |= iwEncodeRestricted
	default:
		flags |= iwEncodeOpen
	}
	req.setPoint(key, flags)
	return wrap("set encode", c.ctl.ioctlIwreq(siocSIWENCODE, &req))
}

// AssociatedBSSID reads the base station the card is currently associated
// with; a zero address means not associated.
func (c *Control) AssociatedBSSID() (net.HardwareAddr, error) {
	req := newIwreq(c.iface())
	if err := c.ctl.ioctlIwreq(siocGIWAP, &req); err != nil {
		return nil, wrap("get ap", err)
	}
	return append(net.HardwareAddr(nil), req.hwAddr()...), nil
}

// iwStatistics mirrors struct iw_statistics up to the quality block.
type iwStatistics struct {
	status  uint16
	qual    [4]uint8 // qual, level, noise, updated
	discard [5]uint32
	miss    uint32
}

// SignalStats reads the driver quality report and converts it to a percent
// of the card's quality range. valid is false when the driver marked the
// reading invalid.
func (c *Control) SignalStats() (percent, noise int, valid bool, err error) {
	var stats iwStatistics
	req := newIwreq(c.iface())
	buf := (*[unsafe.Sizeof(stats)]byte)(unsafe.Pointer(&stats))[:]
	req.setPoint(buf, 1) // flags=1: clear updated counters
	if e := c.ctl.ioctlIwreq(siocGIWSTATS, &req); e != nil {
		return 0, 0, false, wrap("get stats", e)
	}
	updated := stats.qual[3]
	if updated&iwQualQualInvalid != 0 {
		return 0, 0, false, nil
	}
	rng, e := c.Range()
	if e != nil || rng.MaxQuality == 0 {
		return 0, 0, false, nil
	}
	percent = int(stats.qual[0]) * 100 / rng.MaxQuality
	if percent > 100 {
		percent = 100
	}
	if updated&iwQualNoiseInvalid == 0 {
		noise = int(int8(stats.qual[2]))
	}
	return percent, noise, true, nil
}

// MIILink probes the wired link beat through the MII registers.
func (c *Control) MIILink() (bool, error) {
	return miiLink(c.ctl)
}

// IP4 reads the current IPv4 address; nil when unconfigured.
func (c *Control) IP4() (net.IP, error) {
	req, err := unix.NewIfreq(c.iface())
	if err != nil {
		return nil, err
	}
	if err := unix.IoctlIfreq(c.ctl.fd, unix.SIOCGIFADDR, req); err != nil {
		if err == unix.EADDRNOTAVAIL {
			return nil, nil
		}
		return nil, wrap("get address", err)
	}
	addr, err := req.Inet4Addr()
	if err != nil {
		return nil, nil
	}
	ip := net.IPv4(addr[0], addr[1], addr[2], addr[3])
	if ip.Equal(net.IPv4zero) {
		return nil, nil
	}
	return ip, nil
}

// ifreqHwaddr mirrors struct ifreq with the sockaddr member.
type ifreqHwaddr struct {
	name   [unix.IFNAMSIZ]byte
	family uint16
	data   [14]byte
}

// HWAddr reads the interface hardware address.
func (c *Control) HWAddr() (net.HardwareAddr, error) {
	var req ifreqHwaddr
	copy(req.name[:], c.iface())
	if err := c.ctl.ioctlIfreq(unix.SIOCGIFHWADDR, unsafe.Pointer(&req)); err != nil {
		return nil, wrap("get hwaddr", err)
	}
	return append(net.HardwareAddr(nil), req.data[:6]...), nil
}

// Range reads the card's static capabilities.
func (c *Control) Range() (ports.RadioRange, error) {
	return readRange(c.ctl)
}

// Scan triggers a driver scan and collects its results. Returns
// domain.ErrScanNotReady when the driver has no data yet.
func (c *Control) Scan(ctx context.Context) ([]ports.ScanResult, error) {
	trigger := newIwreq(c.iface())
	trigger.setPoint(nil, 0)
	if err := c.ctl.ioctlIwreq(siocSIWSCAN, &trigger); err != nil && err != unix.EBUSY {
		return nil, wrap("trigger scan", err)
	}

	buf := make([]byte, iwScanMaxData)
	req := newIwreq(c.iface())
	req.setPoint(buf, 0)
	if err := c.ctl.ioctlIwreq(siocGIWSCAN, &req); err != nil {
		if err == unix.EAGAIN {
			return nil, domain.ErrScanNotReady
		}
		return nil, wrap("read scan", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseScanEvents(buf[:req.pointLen()]), nil
}
