package radio

import (
	"context"
	"net"
	"sync"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// Fake is the deterministic radio stub backing synthetic test devices.
// Every primitive short-circuits; no kernel traffic happens. Synthetic
// devices may only exist when the daemon runs with test devices enabled.
type Fake struct {
	iface string

	mu      sync.Mutex
	up      bool
	essid   string
	mode    domain.WirelessMode
	freq    float64
	bitrate int
	keySet  bool
}

// Fixed identity of every synthetic device.
var (
	fakeHWAddr = net.HardwareAddr{0x00, 0x16, 0x41, 0x11, 0x22, 0x33}
	fakeIP4    = net.IPv4(0x07, 0x03, 0x07, 0x03)
)

const (
	fakeFreq    = 2412.0
	fakeBitrate = 11000
	fakeSignal  = 75
)

// fakeScanEntry seeds one synthetic scan record. The enc column is
// authoritative for the emitted encrypted flag.
type fakeScanEntry struct {
	essid string
	bssid string
	freq  float64
	qual  int
	enc   bool
}

var fakeScanTable = []fakeScanEntry{
	{"fake-open", "02:fa:ce:00:00:01", 2412, 80, false},
	{"fake-wep", "02:fa:ce:00:00:02", 2437, 60, true},
	{"fake-lab", "02:fa:ce:00:00:03", 2462, 45, true},
	{"fake-cafe", "02:fa:ce:00:00:04", 2422, 30, false},
}

// NewFake creates the stub radio for a synthetic device.
func NewFake(iface string) *Fake {
	return &Fake{iface: iface, mode: domain.ModeInfrastructure, freq: fakeFreq, bitrate: fakeBitrate}
}

func (f *Fake) BringUp() error {
	f.mu.Lock()
	f.up = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) BringDown() error {
	f.mu.Lock()
	f.up = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) IsUp() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up, nil
}

func (f *Fake) ESSID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.essid, nil
}

func (f *Fake) SetESSID(essid string) error {
	f.mu.Lock()
	f.essid = essid
	f.mu.Unlock()
	return nil
}

func (f *Fake) Mode() (domain.WirelessMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, nil
}

func (f *Fake) SetMode(mode domain.WirelessMode) error {
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
	return nil
}

func (f *Fake) Frequency() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freq, nil
}

func (f *Fake) SetFrequency(mhz float64) error {
	f.mu.Lock()
	f.freq = mhz
	f.mu.Unlock()
	return nil
}

func (f *Fake) Bitrate() (int, error) {
	return fakeBitrate, nil
}

func (f *Fake) SetBitrate(kbps int) error {
	f.mu.Lock()
	f.bitrate = kbps
	f.mu.Unlock()
	return nil
}

func (f *Fake) SetEncryptionKey(key []byte, auth domain.AuthMethod) error {
	f.mu.Lock()
	f.keySet = len(key) > 0
	f.mu.Unlock()
	return nil
}

func (f *Fake) AssociatedBSSID() (net.HardwareAddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.essid == "" {
		return net.HardwareAddr{0, 0, 0, 0, 0, 0}, nil
	}
	for _, e := range fakeScanTable {
		if e.essid == f.essid {
			hw, _ := net.ParseMAC(e.bssid)
			return hw, nil
		}
	}
	return net.HardwareAddr{0, 0, 0, 0, 0, 0}, nil
}

func (f *Fake) SignalStats() (int, int, bool, error) {
	return fakeSignal, 0, true, nil
}

func (f *Fake) Range() (ports.RadioRange, error) {
	rng := ports.RadioRange{MaxQuality: 100}
	for ch := 0; ch < 11; ch++ {
		rng.Frequencies = append(rng.Frequencies, 2412+float64(ch)*5)
	}
	return rng, nil
}

func (f *Fake) Scan(ctx context.Context) ([]ports.ScanResult, error) {
	out := make([]ports.ScanResult, 0, len(fakeScanTable))
	for _, e := range fakeScanTable {
		hw, _ := net.ParseMAC(e.bssid)
		out = append(out, ports.ScanResult{
			ESSID:       e.essid,
			BSSID:       hw,
			Mode:        domain.ModeInfrastructure,
			Freq:        e.freq,
			QualityPct:  e.qual,
			KeyDisabled: !e.enc,
		})
	}
	return out, nil
}

func (f *Fake) MIILink() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up, nil
}

func (f *Fake) IP4() (net.IP, error) {
	return fakeIP4, nil
}

func (f *Fake) HWAddr() (net.HardwareAddr, error) {
	return fakeHWAddr, nil
}
