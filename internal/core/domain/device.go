package domain

import (
	"net"
	"sync"
)

// DeviceType classifies a network interface.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceWired
	DeviceWireless
)

func (t DeviceType) String() string {
	switch t {
	case DeviceWired:
		return "wired"
	case DeviceWireless:
		return "wireless"
	}
	return "unknown"
}

// DriverSupport is the classification of how well a driver behaves.
type DriverSupport int

const (
	DriverUnsupported DriverSupport = iota
	DriverSemiSupported
	DriverFullySupported
)

// IPConfig is the static-vs-DHCP configuration record of a device.
type IPConfig struct {
	UseDHCP bool
	AutoIP  bool
	Address net.IP
	Netmask net.IPMask
	Gateway net.IP
}

// SignalUnknown is the smoothed signal value when the driver has returned
// too many invalid readings in a row.
const SignalUnknown = -1

// WirelessState belongs exclusively to a wireless device.
type WirelessState struct {
	ScanCapable bool
	ESSID       string
	Mode        WirelessMode

	// Radio range info, read once from the driver.
	NumFrequencies int
	Frequencies    []float64
	MaxQuality     int

	SignalPercent   int
	Noise           int
	invalidReadings int

	BestAP *AccessPoint
	Frozen bool

	// Rolling scan snapshots, S1 newest.
	S1, S2, S3 *APList
}

// Device represents one managed network interface. It exclusively owns its
// wireless sub-state, scan snapshots, best-AP handle and any in-flight
// activation; the shared Allowed/Invalid lists are injected at construction.
type Device struct {
	UDI     string // stable external identifier
	Iface   string
	Type    DeviceType
	Support DriverSupport
	Test    bool // synthetic device, radio short-circuits to stubs

	mu         sync.Mutex
	linkActive bool
	hwAddr     net.HardwareAddr
	ip4        net.IP
	config     IPConfig
	wireless   *WirelessState
	visible    *APList

	// ScanMu serializes a full scan against activation radio traffic;
	// acquired with TryLock only. BestMu covers read-modify-write of the
	// best-AP handle and the freeze flag.
	ScanMu  sync.Mutex
	BestMu  sync.Mutex
	nowScan bool
}

// NewDevice creates a device record for a hardware-added event.
func NewDevice(udi, iface string, typ DeviceType, support DriverSupport) *Device {
	d := &Device{
		UDI:     udi,
		Iface:   iface,
		Type:    typ,
		Support: support,
		visible: NewAPList(ListDeviceScan),
	}
	if typ == DeviceWireless {
		d.wireless = &WirelessState{
			ScanCapable: true,
			S1:          NewAPList(ListDeviceScan),
			S2:          NewAPList(ListDeviceScan),
			S3:          NewAPList(ListDeviceScan),
		}
	}
	return d
}

// Supported reports whether the device accepts operations at all. An
// unsupported driver only allows creation and destruction.
func (d *Device) Supported() bool { return d.Support != DriverUnsupported }

// Wireless returns the wireless sub-state, nil for wired devices.
func (d *Device) Wireless() *WirelessState {
	return d.wireless
}

// Visible returns the device's current merged scan list.
func (d *Device) Visible() *APList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// SetVisible replaces the merged scan list.
func (d *Device) SetVisible(l *APList) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = l
}

// LinkActive reports the last observed carrier state.
func (d *Device) LinkActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.linkActive
}

// SetLinkActive records the carrier state.
func (d *Device) SetLinkActive(up bool) {
	d.mu.Lock()
	d.linkActive = up
	d.mu.Unlock()
}

// IP4 returns the current IPv4 address, nil when unconfigured.
func (d *Device) IP4() net.IP {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ip4
}

// SetIP4 records the current IPv4 address.
func (d *Device) SetIP4(ip net.IP) {
	d.mu.Lock()
	d.ip4 = ip
	d.mu.Unlock()
}

// HWAddr returns the hardware address.
func (d *Device) HWAddr() net.HardwareAddr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hwAddr
}

// SetHWAddr records the hardware address.
func (d *Device) SetHWAddr(hw net.HardwareAddr) {
	d.mu.Lock()
	d.hwAddr = hw
	d.mu.Unlock()
}

// Config returns the IP configuration record.
func (d *Device) Config() IPConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// SetConfig replaces the IP configuration record.
func (d *Device) SetConfig(c IPConfig) {
	d.mu.Lock()
	d.config = c
	d.mu.Unlock()
}

// NowScanning reports whether the device is advertising "looking for a
// network" to front-ends.
func (d *Device) NowScanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nowScan
}

// SetNowScanning flips the scanning indication.
func (d *Device) SetNowScanning(v bool) {
	d.mu.Lock()
	d.nowScan = v
	d.mu.Unlock()
}

// BestAP returns the current best-AP handle under the best-AP lock.
func (d *Device) BestAP() *AccessPoint {
	if d.wireless == nil {
		return nil
	}
	d.BestMu.Lock()
	defer d.BestMu.Unlock()
	return d.wireless.BestAP
}

// SetBestAP installs a new best-AP handle. Frozen selections are updated
// only through Freeze.
func (d *Device) SetBestAP(ap *AccessPoint) {
	if d.wireless == nil {
		return
	}
	d.BestMu.Lock()
	d.wireless.BestAP = ap
	d.BestMu.Unlock()
}

// Freeze pins ap as the best selection until it stops being visible.
func (d *Device) Freeze(ap *AccessPoint) {
	if d.wireless == nil {
		return
	}
	d.BestMu.Lock()
	d.wireless.BestAP = ap
	d.wireless.Frozen = ap != nil
	d.BestMu.Unlock()
}

// Frozen reports whether the best selection is pinned.
func (d *Device) Frozen() bool {
	if d.wireless == nil {
		return false
	}
	d.BestMu.Lock()
	defer d.BestMu.Unlock()
	return d.wireless.Frozen
}

// ClearFreeze drops the pin without touching the handle.
func (d *Device) ClearFreeze() {
	if d.wireless == nil {
		return
	}
	d.BestMu.Lock()
	d.wireless.Frozen = false
	d.BestMu.Unlock()
}

// RecordSignal folds one driver reading into the smoothed signal percent.
// Up to three consecutive invalid readings repeat the last valid value; the
// fourth forces SignalUnknown.
func (d *Device) RecordSignal(percent, noise int, valid bool) {
	if d.wireless == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.wireless
	if valid {
		w.SignalPercent = percent
		w.Noise = noise
		w.invalidReadings = 0
		return
	}
	w.invalidReadings++
	if w.invalidReadings > 3 {
		w.SignalPercent = SignalUnknown
	}
}

// DeviceView is the wire representation of a device.
type DeviceView struct {
	UDI        string  `json:"udi"`
	Iface      string  `json:"iface"`
	Type       string  `json:"type"`
	LinkActive bool    `json:"link_active"`
	HWAddr     string  `json:"hw_addr,omitempty"`
	IP4        string  `json:"ip4,omitempty"`
	ESSID      string  `json:"essid,omitempty"`
	Signal     int     `json:"signal,omitempty"`
	Scanning   bool    `json:"scanning,omitempty"`
	BestAP     *APView `json:"best_ap,omitempty"`
}

// View snapshots the device for the HTTP and websocket surfaces.
func (d *Device) View() DeviceView {
	d.mu.Lock()
	v := DeviceView{
		UDI:        d.UDI,
		Iface:      d.Iface,
		Type:       d.Type.String(),
		LinkActive: d.linkActive,
		Scanning:   d.nowScan,
	}
	if d.hwAddr != nil {
		v.HWAddr = d.hwAddr.String()
	}
	if d.ip4 != nil {
		v.IP4 = d.ip4.String()
	}
	if d.wireless != nil {
		v.ESSID = d.wireless.ESSID
		v.Signal = d.wireless.SignalPercent
	}
	d.mu.Unlock()
	if best := d.BestAP(); best != nil {
		av := best.View()
		v.BestAP = &av
	}
	return v
}

// NetworkPath returns the object path of an AP under this device, or ""
// for APs with no ESSID.
func (d *Device) NetworkPath(root string, ap *AccessPoint) string {
	if ap == nil || ap.ESSID == "" {
		return ""
	}
	return root + "/" + d.Iface + "/Networks/" + ap.ESSID
}
