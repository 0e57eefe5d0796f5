package scanner

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

type instantClock struct {
	now time.Time
}

func (c *instantClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}
func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// scanRadio pops one scan result set per Scan call.
type scanRadio struct {
	mu      sync.Mutex
	scans   [][]ports.ScanResult
	nrScans int
	mode    domain.WirelessMode
	assoc   net.HardwareAddr
}

func (r *scanRadio) push(results ...ports.ScanResult) {
	r.mu.Lock()
	r.scans = append(r.scans, results)
	r.mu.Unlock()
}

func (r *scanRadio) BringUp() error                  { return nil }
func (r *scanRadio) BringDown() error                { return nil }
func (r *scanRadio) IsUp() (bool, error)             { return true, nil }
func (r *scanRadio) ESSID() (string, error)          { return "", nil }
func (r *scanRadio) SetESSID(essid string) error     { return nil }
func (r *scanRadio) Mode() (domain.WirelessMode, error) { return r.mode, nil }
func (r *scanRadio) SetMode(m domain.WirelessMode) error {
	r.mode = m
	return nil
}
func (r *scanRadio) Frequency() (float64, error)                          { return 2412, nil }
func (r *scanRadio) SetFrequency(mhz float64) error                       { return nil }
func (r *scanRadio) Bitrate() (int, error)                                { return 11000, nil }
func (r *scanRadio) SetBitrate(kbps int) error                            { return nil }
func (r *scanRadio) SetEncryptionKey(k []byte, a domain.AuthMethod) error { return nil }
func (r *scanRadio) AssociatedBSSID() (net.HardwareAddr, error) {
	if r.assoc == nil {
		return net.HardwareAddr{0, 0, 0, 0, 0, 0}, nil
	}
	return r.assoc, nil
}
func (r *scanRadio) SignalStats() (int, int, bool, error) { return 50, 0, true, nil }
func (r *scanRadio) Range() (ports.RadioRange, error) {
	return ports.RadioRange{Frequencies: []float64{2412, 2417}, MaxQuality: 100}, nil
}
func (r *scanRadio) Scan(ctx context.Context) ([]ports.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nrScans++
	if len(r.scans) == 0 {
		return nil, nil
	}
	res := r.scans[0]
	r.scans = r.scans[1:]
	return res, nil
}
func (r *scanRadio) MIILink() (bool, error) { return false, nil }
func (r *scanRadio) IP4() (net.IP, error)   { return nil, nil }
func (r *scanRadio) HWAddr() (net.HardwareAddr, error) {
	return net.HardwareAddr{0, 1, 2, 3, 4, 5}, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *recordingEvents) DeviceStatusChanged(dev *domain.Device, s ports.ActivationStage) {}
func (f *recordingEvents) DeviceIP4AddressChanged(dev *domain.Device, addr net.IP)         {}
func (f *recordingEvents) WirelessNetworkAppeared(dev *domain.Device, ap *domain.AccessPoint) {
	f.mu.Lock()
	f.events = append(f.events, "appeared:"+ap.ESSID)
	f.mu.Unlock()
}
func (f *recordingEvents) WirelessNetworkDisappeared(dev *domain.Device, ap *domain.AccessPoint) {
	f.mu.Lock()
	f.events = append(f.events, "disappeared:"+ap.ESSID)
	f.mu.Unlock()
}
func (f *recordingEvents) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
func (f *recordingEvents) count(ev string) int {
	n := 0
	for _, have := range f.list() {
		if have == ev {
			n++
		}
	}
	return n
}

type memJournal struct{}

func (memJournal) Record(ctx context.Context, ev ports.Event)               {}
func (memJournal) Recent(ctx context.Context, n int) ([]ports.Event, error) { return nil, nil }

func result(essid, bssid string, enc bool) ports.ScanResult {
	hw, _ := net.ParseMAC(bssid)
	return ports.ScanResult{
		ESSID: essid, BSSID: hw, Mode: domain.ModeInfrastructure,
		Freq: 2412, QualityPct: 60, KeyDisabled: !enc,
	}
}

func newTestReconciler(t *testing.T) (*Reconciler, *domain.Device, *scanRadio, *recordingEvents, *domain.APList) {
	t.Helper()
	dev := domain.NewDevice("/dev/wlan0", "wlan0", domain.DeviceWireless, domain.DriverFullySupported)
	radio := &scanRadio{}
	events := &recordingEvents{}
	allowed := domain.NewAPList(domain.ListAllowed)
	rec := New(dev, radio, allowed, events, memJournal{}, &instantClock{now: time.Unix(5000, 0)})
	return rec, dev, radio, events, allowed
}

func TestTick_VisibleIsUnionOfLastTwoScans(t *testing.T) {
	rec, dev, radio, _, _ := newTestReconciler(t)

	radio.push(result("alpha", "02:00:00:00:00:01", false))
	rec.Tick(context.Background())

	radio.push(result("beta", "02:00:00:00:00:02", false))
	rec.Tick(context.Background())

	visible := dev.Visible()
	assert.True(t, visible.ContainsESSID("alpha"), "two-scan window keeps last cycle's AP")
	assert.True(t, visible.ContainsESSID("beta"))
}

func TestTick_NetworkAppearsExactlyOnce(t *testing.T) {
	rec, _, radio, events, _ := newTestReconciler(t)

	for i := 0; i < 4; i++ {
		radio.push(result("home", "02:00:00:00:00:01", false))
		rec.Tick(context.Background())
	}

	assert.Equal(t, 1, events.count("appeared:home"))
}

func TestTick_DisappearanceDampedByHorizon(t *testing.T) {
	rec, dev, radio, events, _ := newTestReconciler(t)

	radio.push(result("home", "02:00:00:00:00:01", false))
	rec.Tick(context.Background())

	// One missed scan: still visible through the window, no event.
	radio.push()
	rec.Tick(context.Background())
	assert.True(t, dev.Visible().ContainsESSID("home"))
	assert.Equal(t, 0, events.count("disappeared:home"))

	// Gone from the window but still inside the snapshot horizon.
	radio.push()
	rec.Tick(context.Background())
	assert.False(t, dev.Visible().ContainsESSID("home"))
	assert.Equal(t, 0, events.count("disappeared:home"))

	radio.push()
	rec.Tick(context.Background())
	assert.Equal(t, 0, events.count("disappeared:home"), "horizon still damps the event")

	// Four scans after the last sighting the retraction finally fires.
	radio.push()
	rec.Tick(context.Background())
	assert.Equal(t, 1, events.count("disappeared:home"), "exactly one disappearance event")
}

func TestTick_CloakedESSIDRecoveredFromAllowed(t *testing.T) {
	rec, dev, radio, _, allowed := newTestReconciler(t)
	allowed.Append(&domain.AccessPoint{ESSID: "hidden-net",
		BSSID: mustMAC("02:00:00:00:00:09")})

	radio.push(result("", "02:00:00:00:00:09", true))
	rec.Tick(context.Background())

	assert.True(t, dev.Visible().ContainsESSID("hidden-net"))
}

func TestTick_PropertiesCopiedFromAllowed(t *testing.T) {
	rec, dev, radio, _, allowed := newTestReconciler(t)
	allowed.Append(&domain.AccessPoint{ESSID: "corp", Encrypted: true,
		Key: "deadbeef01", KeyType: domain.KeyTypeHex, Trusted: true})

	radio.push(result("corp", "02:00:00:00:00:03", true))
	rec.Tick(context.Background())

	ap := dev.Visible().ByESSID("corp")
	require.NotNil(t, ap)
	assert.Equal(t, "deadbeef01", ap.Key)
	assert.True(t, ap.Trusted)
}

func TestTick_SkipsWhenScanLockHeld(t *testing.T) {
	rec, dev, radio, _, _ := newTestReconciler(t)
	radio.push(result("home", "02:00:00:00:00:01", false))

	dev.ScanMu.Lock()
	rec.Tick(context.Background())
	dev.ScanMu.Unlock()

	assert.Equal(t, 0, radio.nrScans, "held scan lock skips the tick")
}

func TestTick_ArtificialAPPreservedWhileAssociated(t *testing.T) {
	rec, dev, radio, _, _ := newTestReconciler(t)

	art := &domain.AccessPoint{ESSID: "mynet", Mode: domain.ModeAdHoc,
		BSSID: mustMAC("02:00:00:00:00:44"), Artificial: true}
	dev.Visible().Append(art)
	radio.assoc = art.BSSID

	radio.push(result("other", "02:00:00:00:00:01", false))
	rec.Tick(context.Background())

	assert.True(t, dev.Visible().ContainsESSID("mynet"),
		"artificial AP survives scans while the card is associated with it")
	assert.True(t, dev.Visible().ContainsESSID("other"))
}

func TestTick_RestoresModeAfterScan(t *testing.T) {
	rec, _, radio, _, _ := newTestReconciler(t)
	radio.mode = domain.ModeAdHoc

	radio.push(result("x", "02:00:00:00:00:01", false))
	rec.Tick(context.Background())

	assert.Equal(t, domain.ModeAdHoc, radio.mode, "prior mode restored after forcing infrastructure")
}

func mustMAC(s string) net.HardwareAddr {
	hw, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return hw
}
