package activation

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

// fakeClock advances instantly on Sleep and records every duration.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) sleptDurations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// testRadio is a scriptable ports.Radio.
type testRadio struct {
	mu         sync.Mutex
	up         bool
	essid      string
	mode       domain.WirelessMode
	freq       float64
	auth       domain.AuthMethod
	key        []byte
	freqs      []float64
	assocQueue []bool
	assocOk    bool
	miiUp      bool
	essidLog   []string
	freqLog    []float64
}

func newTestRadio(channels int) *testRadio {
	r := &testRadio{mode: domain.ModeInfrastructure}
	for ch := 1; ch <= channels; ch++ {
		r.freqs = append(r.freqs, freqForChannel(ch))
	}
	return r
}

func (r *testRadio) BringUp() error   { r.mu.Lock(); r.up = true; r.mu.Unlock(); return nil }
func (r *testRadio) BringDown() error { r.mu.Lock(); r.up = false; r.mu.Unlock(); return nil }
func (r *testRadio) IsUp() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.up, nil
}
func (r *testRadio) ESSID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.essid, nil
}
func (r *testRadio) SetESSID(essid string) error {
	r.mu.Lock()
	r.essid = essid
	r.essidLog = append(r.essidLog, essid)
	r.mu.Unlock()
	return nil
}
func (r *testRadio) Mode() (domain.WirelessMode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode, nil
}
func (r *testRadio) SetMode(m domain.WirelessMode) error {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
	return nil
}
func (r *testRadio) Frequency() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freq, nil
}
func (r *testRadio) SetFrequency(mhz float64) error {
	r.mu.Lock()
	r.freq = mhz
	r.freqLog = append(r.freqLog, mhz)
	r.mu.Unlock()
	return nil
}
func (r *testRadio) Bitrate() (int, error)     { return 11000, nil }
func (r *testRadio) SetBitrate(kbps int) error { return nil }
func (r *testRadio) SetEncryptionKey(key []byte, auth domain.AuthMethod) error {
	r.mu.Lock()
	r.key = key
	r.auth = auth
	r.mu.Unlock()
	return nil
}

func (r *testRadio) AssociatedBSSID() (net.HardwareAddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok := r.assocOk
	if len(r.assocQueue) > 0 {
		ok = r.assocQueue[0]
		r.assocQueue = r.assocQueue[1:]
	}
	if !ok {
		return net.HardwareAddr{0, 0, 0, 0, 0, 0}, nil
	}
	return net.HardwareAddr{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}, nil
}

func (r *testRadio) SignalStats() (int, int, bool, error) { return 70, 0, true, nil }
func (r *testRadio) Range() (ports.RadioRange, error) {
	return ports.RadioRange{Frequencies: r.freqs, MaxQuality: 100}, nil
}
func (r *testRadio) Scan(ctx context.Context) ([]ports.ScanResult, error) { return nil, nil }
func (r *testRadio) MIILink() (bool, error)                               { return r.miiUp, nil }
func (r *testRadio) IP4() (net.IP, error)                                 { return nil, nil }
func (r *testRadio) HWAddr() (net.HardwareAddr, error) {
	return net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, nil
}

// fakeEvents records published host-bus events in order.
type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) DeviceStatusChanged(dev *domain.Device, stage ports.ActivationStage) {
	f.add("status:" + string(stage))
}
func (f *fakeEvents) DeviceIP4AddressChanged(dev *domain.Device, addr net.IP) {
	f.add("ip4:" + addr.String())
}
func (f *fakeEvents) WirelessNetworkAppeared(dev *domain.Device, ap *domain.AccessPoint) {
	f.add("appeared:" + ap.ESSID)
}
func (f *fakeEvents) WirelessNetworkDisappeared(dev *domain.Device, ap *domain.AccessPoint) {
	f.add("disappeared:" + ap.ESSID)
}

func (f *fakeEvents) add(ev string) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeEvents) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeEvents) waitFor(t *testing.T, ev string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, have := range f.list() {
			if have == ev {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("event %q never arrived; have %v", ev, f.list())
}

type dhcpResult struct {
	lease ports.Lease
	ok    bool
}

// fakeDHCP pops scripted results per Request call.
type fakeDHCP struct {
	mu       sync.Mutex
	results  []dhcpResult
	requests int
	released int
}

func (f *fakeDHCP) Request(ctx context.Context, iface string) (ports.Lease, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if len(f.results) == 0 {
		return ports.Lease{}, false, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res.lease, res.ok, nil
}

func (f *fakeDHCP) Renew(ctx context.Context, iface string) (ports.Lease, bool, error) {
	return ports.Lease{}, false, nil
}
func (f *fakeDHCP) Cease(iface string) {}
func (f *fakeDHCP) Release(iface string) {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

type fakeAutoIP struct {
	ip net.IP
	ok bool
}

func (f *fakeAutoIP) Configure(ctx context.Context, iface string, hw net.HardwareAddr) (net.IP, bool) {
	return f.ip, f.ok
}

type fakeTools struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTools) rec(c string) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return nil
}
func (f *fakeTools) DeleteDefaultRoute() error        { return f.rec("delete_default_route") }
func (f *fakeTools) FlushRoutes(iface string) error   { return f.rec("flush_routes") }
func (f *fakeTools) FlushAddresses(iface string) error { return f.rec("flush_addresses") }
func (f *fakeTools) FlushARPCache() error             { return f.rec("flush_arp") }
func (f *fakeTools) RestartMDNSResponder() error      { return f.rec("restart_mdns") }
func (f *fakeTools) SetupStaticIPv4(iface string, cfg domain.IPConfig) error {
	return f.rec("static_ipv4")
}
func (f *fakeTools) AnnounceAddress(iface string, hw net.HardwareAddr, ip net.IP) error {
	return f.rec("announce")
}

// fakePrompt answers key requests from a scripted queue via DeliverKey.
type fakePrompt struct {
	mu       sync.Mutex
	engine   *Engine
	keys     []string
	attempts []int
}

func (f *fakePrompt) RequestKey(dev *domain.Device, essid string, attempt int) {
	f.mu.Lock()
	f.attempts = append(f.attempts, attempt)
	var key string
	if len(f.keys) > 0 {
		key = f.keys[0]
		f.keys = f.keys[1:]
	}
	eng := f.engine
	f.mu.Unlock()
	go eng.DeliverKey(dev, key, domain.KeyTypeHex)
}

type nopJournal struct{}

func (nopJournal) Record(ctx context.Context, ev ports.Event)            {}
func (nopJournal) Recent(ctx context.Context, n int) ([]ports.Event, error) { return nil, nil }

type harness struct {
	engine  *Engine
	clock   *fakeClock
	radio   *testRadio
	events  *fakeEvents
	dhcp    *fakeDHCP
	autoip  *fakeAutoIP
	tools   *fakeTools
	prompt  *fakePrompt
	allowed *domain.APList
	invalid *domain.APList
}

func newHarness(channels int) *harness {
	h := &harness{
		clock:   newFakeClock(),
		radio:   newTestRadio(channels),
		events:  &fakeEvents{},
		dhcp:    &fakeDHCP{},
		autoip:  &fakeAutoIP{},
		tools:   &fakeTools{},
		prompt:  &fakePrompt{},
		allowed: domain.NewAPList(domain.ListAllowed),
		invalid: domain.NewAPList(domain.ListInvalid),
	}
	h.engine = NewEngine(Deps{
		Events:  h.events,
		DHCP:    h.dhcp,
		AutoIP:  h.autoip,
		Tools:   h.tools,
		Prompt:  h.prompt,
		Journal: nopJournal{},
		Clock:   h.clock,
	}, h.allowed, h.invalid)
	h.prompt.engine = h.engine
	return h
}

func (h *harness) waitIdle(t *testing.T, dev *domain.Device) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !h.engine.IsActivating(dev) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("worker never terminated")
}

func wirelessDevice(udi, iface string) *domain.Device {
	return domain.NewDevice(udi, iface, domain.DeviceWireless, domain.DriverFullySupported)
}

func TestWiredColdBootPreConfigured(t *testing.T) {
	h := newHarness(11)
	h.engine.StartingUp.Store(true)

	dev := domain.NewDevice("/dev/eth0", "eth0", domain.DeviceWired, domain.DriverFullySupported)
	dev.SetIP4(net.ParseIP("192.0.2.5"))

	require.NoError(t, h.engine.Begin(dev, h.radio))

	// No worker spawns and only the final success event is published.
	assert.False(t, h.engine.IsActivating(dev))
	assert.Equal(t, []string{"status:now_active"}, h.events.list())
	assert.Empty(t, h.tools.calls)
}

func TestUnsupportedDriverRejected(t *testing.T) {
	h := newHarness(11)
	dev := domain.NewDevice("/dev/x", "wlan9", domain.DeviceWireless, domain.DriverUnsupported)

	err := h.engine.Begin(dev, h.radio)
	assert.ErrorIs(t, err, domain.ErrNoDriverSupport)
}

func TestUnencryptedInfrastructureSuccess(t *testing.T) {
	h := newHarness(2) // plain b card, 5s association pause
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	dev.SetConfig(domain.IPConfig{UseDHCP: true})

	best := &domain.AccessPoint{ESSID: "home", Mode: domain.ModeInfrastructure}
	dev.SetBestAP(best)
	h.radio.assocOk = true
	h.dhcp.results = []dhcpResult{{lease: ports.Lease{IP: net.ParseIP("10.0.0.42")}, ok: true}}

	require.NoError(t, h.engine.Begin(dev, h.radio))
	h.events.waitFor(t, "status:now_active")
	h.engine.Cancel(dev)
	h.waitIdle(t, dev)

	events := h.events.list()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "status:activating", events[0])
	assert.Equal(t, "ip4:10.0.0.42", events[1])
	assert.Equal(t, "status:now_active", events[2])

	assert.Contains(t, h.radio.essidLog, "home")
	assert.Contains(t, h.clock.sleptDurations(), 5*time.Second,
		"a 2-channel card pauses 5s for association")
	assert.Equal(t, "10.0.0.42", dev.IP4().String())
}

func TestAssociationPauseLongOnABGCards(t *testing.T) {
	h := newHarness(30) // > 14 channels
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	dev.SetConfig(domain.IPConfig{UseDHCP: true})
	dev.SetBestAP(&domain.AccessPoint{ESSID: "fast", Mode: domain.ModeInfrastructure})
	h.radio.assocOk = true
	h.dhcp.results = []dhcpResult{{lease: ports.Lease{IP: net.ParseIP("10.0.0.9")}, ok: true}}

	require.NoError(t, h.engine.Begin(dev, h.radio))
	h.events.waitFor(t, "status:now_active")
	h.engine.Cancel(dev)
	h.waitIdle(t, dev)

	assert.Contains(t, h.clock.sleptDurations(), 10*time.Second)
	assert.NotContains(t, h.clock.sleptDurations(), 5*time.Second)
}

func TestAuthFallbackLadderWithUserKeys(t *testing.T) {
	h := newHarness(2)
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	dev.SetConfig(domain.IPConfig{UseDHCP: true})

	best := &domain.AccessPoint{ESSID: "wifi", Mode: domain.ModeInfrastructure, Encrypted: true}
	dev.SetBestAP(best)

	// Attempt 1, key "deadbeef01": shared-key fails to link, open-system
	// links but DHCP fails -> key judged wrong, prompt attempt 2.
	// Attempt 2, key "cafef00d11": shared-key links, DHCP binds.
	h.prompt.keys = []string{"deadbeef01", "cafef00d11"}
	h.radio.assocQueue = []bool{false, true, true}
	h.dhcp.results = []dhcpResult{
		{ok: false},
		{lease: ports.Lease{IP: net.ParseIP("10.0.0.7")}, ok: true},
	}

	require.NoError(t, h.engine.Begin(dev, h.radio))
	h.events.waitFor(t, "status:now_active")
	h.engine.Cancel(dev)
	h.waitIdle(t, dev)

	assert.Equal(t, []int{1, 2}, h.prompt.attempts)
	assert.Equal(t, 2, h.dhcp.requests)
	assert.Equal(t, "10.0.0.7", dev.IP4().String())
}

func TestKeyPromptCancelledInvalidatesAP(t *testing.T) {
	h := newHarness(2)
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	dev.SetConfig(domain.IPConfig{UseDHCP: true})

	best := &domain.AccessPoint{ESSID: "wifi", Mode: domain.ModeInfrastructure, Encrypted: true}
	dev.Visible().Append(best)
	dev.SetBestAP(best)
	h.prompt.keys = []string{domain.KeyPromptCanceled}

	require.NoError(t, h.engine.Begin(dev, h.radio))

	// The AP lands on the invalid list and the engine resumes waiting,
	// advertising the scan.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !h.invalid.ContainsESSID("wifi") {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, h.invalid.ContainsESSID("wifi"))

	for time.Now().Before(deadline) && !dev.NowScanning() {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, dev.NowScanning())
	assert.Nil(t, dev.BestAP())

	h.engine.Cancel(dev)
	h.waitIdle(t, dev)
}

func TestAdhocCreationPicksLowestFreeChannel(t *testing.T) {
	h := newHarness(14)
	dev := wirelessDevice("/dev/wlan0", "wlan0")

	// Channels 1, 6 and 11 are congested.
	for _, ch := range []int{1, 6, 11} {
		dev.Visible().Append(&domain.AccessPoint{
			ESSID: "busy", BSSID: net.HardwareAddr{2, 0, 0, 0, 0, byte(ch)},
			Freq: freqForChannel(ch),
		})
	}

	adhoc := &domain.AccessPoint{
		ESSID: "mynet", Mode: domain.ModeAdHoc, UserCreated: true,
	}
	dev.SetBestAP(adhoc)
	h.autoip.ip = net.ParseIP("169.254.12.34")
	h.autoip.ok = true

	require.NoError(t, h.engine.Begin(dev, h.radio))
	h.events.waitFor(t, "status:now_active")
	h.waitIdle(t, dev)

	assert.Contains(t, h.radio.freqLog, freqForChannel(2),
		"lowest free b channel is 2")
	assert.Equal(t, domain.ModeAdHoc, h.radio.mode)
	assert.Equal(t, "169.254.12.34", dev.IP4().String())
}

func TestBeginIsNoOpWhileActivating(t *testing.T) {
	h := newHarness(2)
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	// No best AP: the worker parks in WAIT_FOR_AP.
	require.NoError(t, h.engine.Begin(dev, h.radio))
	require.NoError(t, h.engine.Begin(dev, h.radio))

	h.engine.mu.Lock()
	workers := len(h.engine.active)
	h.engine.mu.Unlock()
	assert.Equal(t, 1, workers, "at most one worker per device")

	h.engine.Cancel(dev)
	h.waitIdle(t, dev)
}

func TestDoubleCancelIsIdempotent(t *testing.T) {
	h := newHarness(2)
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	require.NoError(t, h.engine.Begin(dev, h.radio))

	h.engine.Cancel(dev)
	h.engine.Cancel(dev) // observationally equivalent to one
	assert.False(t, h.engine.IsActivating(dev))
}

func TestCancelUnwindsRadio(t *testing.T) {
	h := newHarness(2)
	dev := wirelessDevice("/dev/wlan0", "wlan0")
	require.NoError(t, h.engine.Begin(dev, h.radio))
	h.engine.Cancel(dev)
	h.waitIdle(t, dev)

	assert.Equal(t, " ", h.radio.essid, "essid cleared on unwind")
	assert.Equal(t, domain.ModeInfrastructure, h.radio.mode)
	assert.Contains(t, h.events.list(), "status:no_longer_active")
}
