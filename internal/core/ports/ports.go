// Package ports declares the interfaces between the link-management core and
// its collaborators: the radio/kernel control surface, the DHCP engine, the
// user key prompt channel, the host-bus event surface and the hardware
// property store. Core services depend only on these interfaces; adapters
// implement them.
package ports

import (
	"context"
	"net"
	"time"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

// ScanResult is one raw record from a driver scan, before normalization.
type ScanResult struct {
	ESSID       string
	BSSID       net.HardwareAddr
	Mode        domain.WirelessMode
	Freq        float64
	QualityPct  int
	KeyDisabled bool // driver reports encryption off
}

// RadioRange is the static capability info of a wireless card.
type RadioRange struct {
	Frequencies []float64
	MaxQuality  int
}

// NumFrequencies returns the channel count, which drives the association
// pause duration.
func (r RadioRange) NumFrequencies() int { return len(r.Frequencies) }

// Radio is the typed wrapper over the wireless-extension and socket ioctl
// surface, bound to one interface. Drivers that silently swallow a command
// are treated as successful; real failures surface as *domain.IoError.
type Radio interface {
	BringUp() error
	BringDown() error
	IsUp() (bool, error)

	ESSID() (string, error)
	SetESSID(essid string) error
	Mode() (domain.WirelessMode, error)
	SetMode(mode domain.WirelessMode) error
	Frequency() (float64, error)
	SetFrequency(mhz float64) error
	Bitrate() (int, error)
	SetBitrate(kbps int) error

	// SetEncryptionKey installs raw key material with the given auth
	// algorithm. An empty key disables encryption.
	SetEncryptionKey(key []byte, auth domain.AuthMethod) error

	AssociatedBSSID() (net.HardwareAddr, error)
	SignalStats() (percent, noise int, valid bool, err error)
	Range() (RadioRange, error)
	Scan(ctx context.Context) ([]ScanResult, error)

	MIILink() (bool, error)
	IP4() (net.IP, error)
	HWAddr() (net.HardwareAddr, error)
}

// Lease is the subset of a DHCP lease the core schedules timers from.
type Lease struct {
	IP       net.IP
	Netmask  net.IPMask
	Gateway  net.IP
	Renewal  time.Duration
	Rebind   time.Duration
	Lifetime time.Duration
}

// DHCPClient is the external DHCP engine.
type DHCPClient interface {
	// Request runs the discover/request cycle; ok is false on failure.
	Request(ctx context.Context, iface string) (lease Lease, ok bool, err error)
	// Renew re-requests the current lease; ok is false when the server
	// declines and a full rebind is needed.
	Renew(ctx context.Context, iface string) (lease Lease, ok bool, err error)
	Cease(iface string)
	Release(iface string)
}

// AutoIP is the link-local address collaborator.
type AutoIP interface {
	Configure(ctx context.Context, iface string, hw net.HardwareAddr) (net.IP, bool)
}

// KeyPrompt asks a front-end for a pre-shared key. The request is
// fire-and-forget; the reply arrives through the activation engine's
// DeliverKey entry point. A reply of domain.KeyPromptCanceled (exact bytes)
// means the user dismissed the prompt.
type KeyPrompt interface {
	RequestKey(dev *domain.Device, essid string, attempt int)
}

// ActivationStage mirrors the host-bus DeviceStatusChanged phases.
type ActivationStage string

const (
	StageActivating     ActivationStage = "activating"
	StageNoLongerActive ActivationStage = "no_longer_active"
	StageNowActive      ActivationStage = "now_active"
)

// EventSink publishes device and network state changes to other processes.
// Implementations must not block the calling goroutine for long; publishes
// happen synchronously with the internal transition.
type EventSink interface {
	DeviceStatusChanged(dev *domain.Device, stage ActivationStage)
	DeviceIP4AddressChanged(dev *domain.Device, addr net.IP)
	WirelessNetworkAppeared(dev *domain.Device, ap *domain.AccessPoint)
	WirelessNetworkDisappeared(dev *domain.Device, ap *domain.AccessPoint)
}

// SystemTools groups the kernel helpers outside the radio surface.
type SystemTools interface {
	DeleteDefaultRoute() error
	FlushRoutes(iface string) error
	FlushAddresses(iface string) error
	FlushARPCache() error
	RestartMDNSResponder() error
	SetupStaticIPv4(iface string, cfg domain.IPConfig) error
	// AnnounceAddress sends a gratuitous ARP for the freshly configured
	// address so peers update their caches.
	AnnounceAddress(iface string, hw net.HardwareAddr, ip net.IP) error
}

// PropertyStore is the hardware-abstraction property query surface.
type PropertyStore interface {
	Exists(udi, key string) bool
	GetBool(udi, key string) bool
	DriverSupport(udi, iface string) domain.DriverSupport
}

// Event is one journal row.
type Event struct {
	ID     string
	Time   time.Time
	Device string
	Kind   string
	ESSID  string
	Detail string
}

// Journal is the append-only link-event log.
type Journal interface {
	Record(ctx context.Context, ev Event)
	Recent(ctx context.Context, n int) ([]Event, error)
}

// Clock abstracts time for the activation engine so association pauses and
// settle delays are testable. Sleep returns early with the context error
// when cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
