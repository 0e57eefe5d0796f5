// Package activation drives the end-to-end procedure that brings a chosen
// network from candidate to usable default route with IP address.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
	"github.com/lcalzada-xor/linkd/internal/telemetry"
)

// Phase is the engine's progress state. Transitions happen only inside the
// worker loop.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePrepare
	PhaseWaitForAP
	PhaseAssociate
	PhaseNeedKey
	PhaseVerifyLink
	PhaseConfigureIP
	PhaseRunning
	PhaseCancelled
	PhaseFailed
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseWaitForAP:
		return "wait_for_ap"
	case PhaseAssociate:
		return "associate"
	case PhaseNeedKey:
		return "need_key"
	case PhaseVerifyLink:
		return "verify_link"
	case PhaseConfigureIP:
		return "configure_ip"
	case PhaseRunning:
		return "running"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	case PhaseDone:
		return "done"
	}
	return "idle"
}

const (
	// settleDown and settleUp are mandatory pauses around the interface
	// bounce; some drivers drop commands issued too close to a state
	// change.
	settleDown = 4 * time.Second
	settleUp   = 2 * time.Second

	pollInterval    = 500 * time.Millisecond // key/cancel wait, 2 Hz
	bestAPPoll      = 2 * time.Second
	adhocChannelMin = 1
	adhocChannelMax = 14
)

// request is one in-flight activation.
type request struct {
	id    string
	dev   *domain.Device
	radio ports.Radio

	ctx    context.Context
	cancel context.CancelFunc

	phase atomic.Int32

	mu       sync.Mutex
	attempts map[string]int // key prompt attempt counters, keyed by ESSID
	keyReply *string
	keyType  domain.KeyType
}

func (r *request) setPhase(p Phase) { r.phase.Store(int32(p)) }
func (r *request) Phase() Phase     { return Phase(r.phase.Load()) }

func (r *request) cancelled() bool { return r.ctx.Err() != nil }

// Deps bundles the engine's collaborators.
type Deps struct {
	Events  ports.EventSink
	DHCP    ports.DHCPClient
	AutoIP  ports.AutoIP
	Tools   ports.SystemTools
	Prompt  ports.KeyPrompt
	Journal ports.Journal
	Clock   ports.Clock
}

// Engine owns one dedicated worker per activating device.
type Engine struct {
	deps    Deps
	invalid *domain.APList
	allowed *domain.APList

	mu     sync.Mutex
	active map[string]*request // by device UDI

	// StartingUp is true during initial process boot; a wired device that
	// already has an address then activates without touching the kernel.
	StartingUp atomic.Bool

	tracer trace.Tracer
}

// NewEngine creates the activation engine around the shared lists.
func NewEngine(deps Deps, allowed, invalid *domain.APList) *Engine {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	return &Engine{
		deps:    deps,
		allowed: allowed,
		invalid: invalid,
		active:  make(map[string]*request),
		tracer:  otel.Tracer("linkd/activation"),
	}
}

// IsActivating reports whether dev has a live worker.
func (e *Engine) IsActivating(dev *domain.Device) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[dev.UDI]
	return ok
}

// Phase returns the current phase of dev's activation, PhaseIdle when none.
func (e *Engine) Phase(dev *domain.Device) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if req, ok := e.active[dev.UDI]; ok {
		return req.Phase()
	}
	return PhaseIdle
}

// Begin starts an activation for dev. A device already activating is a
// no-op; an unsupported driver is rejected at the door.
func (e *Engine) Begin(dev *domain.Device, radio ports.Radio) error {
	if !dev.Supported() {
		return fmt.Errorf("%w: %s", domain.ErrNoDriverSupport, dev.Iface)
	}

	e.mu.Lock()
	if _, ok := e.active[dev.UDI]; ok {
		e.mu.Unlock()
		return nil
	}

	// Startup special case: a wired device that already carries an IPv4
	// address is declared active without touching the kernel. Only the
	// final success event is published.
	if e.StartingUp.Load() && dev.Type == domain.DeviceWired && dev.IP4() != nil {
		e.mu.Unlock()
		slog.Info("device pre-configured at startup", "iface", dev.Iface, "ip", dev.IP4().String())
		e.deps.Events.DeviceStatusChanged(dev, ports.StageNowActive)
		e.journal(dev, "activated", "", "pre-configured at startup")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := &request{
		id:       uuid.NewString(),
		dev:      dev,
		radio:    radio,
		ctx:      ctx,
		cancel:   cancel,
		attempts: make(map[string]int),
	}
	req.setPhase(PhasePrepare)
	e.active[dev.UDI] = req
	e.mu.Unlock()

	go e.worker(req)
	return nil
}

// Cancel requests cooperative cancellation and synchronously waits for the
// worker to terminate, polling at 2 Hz. Idempotent: a second cancel is a
// no-op that still blocks until the worker is gone.
func (e *Engine) Cancel(dev *domain.Device) {
	e.mu.Lock()
	req, ok := e.active[dev.UDI]
	e.mu.Unlock()
	if !ok {
		return
	}
	req.cancel()
	for e.IsActivating(dev) {
		e.deps.Clock.Sleep(context.Background(), pollInterval)
	}
}

// DeliverKey hands a user key reply to the worker blocked in NEED_KEY.
// A reply of domain.KeyPromptCanceled marks the prompt dismissed.
func (e *Engine) DeliverKey(dev *domain.Device, key string, typ domain.KeyType) {
	e.mu.Lock()
	req, ok := e.active[dev.UDI]
	e.mu.Unlock()
	if !ok {
		return
	}
	req.mu.Lock()
	k := key
	req.keyReply = &k
	req.keyType = typ
	req.mu.Unlock()
}

func (e *Engine) journal(dev *domain.Device, kind, essid, detail string) {
	if e.deps.Journal != nil {
		e.deps.Journal.Record(context.Background(), ports.Event{
			Device: dev.UDI, Kind: kind, ESSID: essid, Detail: detail,
		})
	}
}

// transition logs and journals one phase change.
func (e *Engine) transition(req *request, next Phase, essid string, auth domain.AuthMethod, outcome string) {
	req.setPhase(next)
	e.journal(req.dev, "phase_"+next.String(), essid, outcome)
	if essid == "" {
		essid = "(none)"
	}
	slog.Info("activation phase",
		"iface", req.dev.Iface,
		"phase", next.String(),
		"essid", essid,
		"auth", auth.String(),
		"outcome", outcome)
}

// worker drives one activation to DONE. The state machine is an explicit
// phase value stepped by a single loop; cancellation is checked at every
// iteration and after every sleep.
func (e *Engine) worker(req *request) {
	_, span := e.tracer.Start(context.Background(), "activate",
		trace.WithAttributes(attribute.String("iface", req.dev.Iface)))
	started := e.deps.Clock.Now()
	dev := req.dev
	outcome := "failed"

	defer func() {
		span.End()
		e.mu.Lock()
		delete(e.active, dev.UDI)
		e.mu.Unlock()
		telemetry.ActivationsTotal.WithLabelValues(dev.Iface, outcome).Inc()
		telemetry.ActivationSeconds.WithLabelValues(dev.Iface).
			Observe(e.deps.Clock.Now().Sub(started).Seconds())
	}()

	var best *domain.AccessPoint
	auth := domain.AuthSharedKey
	var lease ports.Lease
	haveLease := false

	e.deps.Events.DeviceStatusChanged(dev, ports.StageActivating)
	e.journal(dev, "activating", "", "")
	phase := PhasePrepare

	for {
		if req.cancelled() && phase != PhaseCancelled && phase != PhaseDone {
			phase = PhaseCancelled
		}

		switch phase {
		case PhasePrepare:
			if dev.Type == domain.DeviceWired {
				e.transition(req, PhaseConfigureIP, "", domain.AuthUnknown, "wired link")
				phase = PhaseConfigureIP
				break
			}
			e.transition(req, PhaseWaitForAP, "", domain.AuthUnknown, "")
			phase = PhaseWaitForAP

		case PhaseWaitForAP:
			best = dev.BestAP()
			if best == nil {
				dev.SetNowScanning(true)
				e.deps.Clock.Sleep(req.ctx, bestAPPoll)
				break // re-check cancel flag, then poll again
			}
			dev.SetNowScanning(false)

			switch {
			case best.UserCreated && best.Mode == domain.ModeAdHoc:
				if err := e.createAdhoc(req, best); err != nil {
					e.transition(req, PhaseFailed, best.ESSID, domain.AuthUnknown, err.Error())
					phase = PhaseFailed
					break
				}
				e.transition(req, PhaseConfigureIP, best.ESSID, domain.AuthUnknown, "adhoc created")
				phase = PhaseConfigureIP
			case !best.Encrypted:
				auth = domain.AuthNone
				e.transition(req, PhaseAssociate, best.ESSID, auth, "")
				phase = PhaseAssociate
			case best.Key == "":
				e.transition(req, PhaseNeedKey, best.ESSID, domain.AuthUnknown, "no key")
				phase = PhaseNeedKey
			default:
				auth = domain.AuthSharedKey
				e.transition(req, PhaseAssociate, best.ESSID, auth, "")
				phase = PhaseAssociate
			}

		case PhaseNeedKey:
			key, typ, err := e.waitForKey(req, best)
			if err != nil {
				if req.cancelled() {
					phase = PhaseCancelled
					break
				}
				// User dismissed the prompt: this network is out.
				e.invalidate(req, best)
				best = nil
				e.transition(req, PhaseWaitForAP, "", domain.AuthUnknown, "key prompt cancelled")
				phase = PhaseWaitForAP
				break
			}
			best.Key = key
			best.KeyType = typ
			auth = domain.AuthSharedKey
			e.transition(req, PhaseAssociate, best.ESSID, auth, "key received")
			phase = PhaseAssociate

		case PhaseAssociate:
			if err := e.setupRadio(req, best, auth); err != nil {
				if req.cancelled() {
					phase = PhaseCancelled
					break
				}
				e.transition(req, PhaseFailed, best.ESSID, auth, err.Error())
				phase = PhaseFailed
				break
			}
			e.transition(req, PhaseVerifyLink, best.ESSID, auth, "")
			phase = PhaseVerifyLink

		case PhaseVerifyLink:
			if e.hasLink(req) {
				dev.SetLinkActive(true)
				if w := dev.Wireless(); w != nil {
					w.ESSID = best.ESSID
				}
				e.transition(req, PhaseConfigureIP, best.ESSID, auth, "link up")
				phase = PhaseConfigureIP
				break
			}
			dev.SetLinkActive(false)
			if best.Encrypted && auth == domain.AuthSharedKey {
				// Authentication fallback ladder: drop to open system.
				auth = domain.AuthOpenSystem
				e.transition(req, PhaseAssociate, best.ESSID, auth, "no link, retrying open-system")
				phase = PhaseAssociate
				break
			}
			e.invalidate(req, best)
			best = nil
			e.transition(req, PhaseWaitForAP, "", auth, "association failed")
			phase = PhaseWaitForAP

		case PhaseConfigureIP:
			result, err := e.configureIP(req, best, auth)
			switch {
			case err == nil:
				lease = result.lease
				haveLease = result.haveLease
				e.announce(req, result.ip)
				dev.SetIP4(result.ip)
				e.deps.Events.DeviceIP4AddressChanged(dev, result.ip)
				e.deps.Events.DeviceStatusChanged(dev, ports.StageNowActive)
				e.journal(dev, "activated", essidOf(best), result.ip.String())
				outcome = "success"
				if haveLease {
					e.transition(req, PhaseRunning, essidOf(best), auth, "dhcp bound")
					phase = PhaseRunning
				} else {
					e.transition(req, PhaseDone, essidOf(best), auth, "configured")
					phase = PhaseDone
				}
			case req.cancelled():
				phase = PhaseCancelled
			case dev.Type == domain.DeviceWireless && best != nil && best.Encrypted && auth == domain.AuthSharedKey:
				// DHCP failure right after a shared-key association is
				// indistinguishable from a half-working auth: retry open.
				auth = domain.AuthOpenSystem
				e.transition(req, PhaseAssociate, best.ESSID, auth, "dhcp failed, retrying open-system")
				phase = PhaseAssociate
			case dev.Type == domain.DeviceWireless && best != nil && best.Encrypted:
				// Open system also failed DHCP: the key is wrong.
				best.Key = ""
				e.transition(req, PhaseNeedKey, best.ESSID, auth, "dhcp failed, key looks wrong")
				phase = PhaseNeedKey
			default:
				e.dropRadioConfig(req)
				e.transition(req, PhaseFailed, essidOf(best), auth, "ip configuration failed")
				phase = PhaseFailed
			}

		case PhaseRunning:
			e.leaseLoop(req, &lease)
			if req.cancelled() {
				phase = PhaseCancelled
				break
			}
			e.transition(req, PhaseDone, essidOf(best), auth, "lease released")
			phase = PhaseDone

		case PhaseCancelled:
			e.unwind(req)
			e.transition(req, PhaseDone, essidOf(best), auth, "cancelled")
			e.journal(dev, "cancelled", essidOf(best), "")
			if outcome != "success" {
				outcome = "cancelled"
			}
			return

		case PhaseFailed:
			e.deps.Events.DeviceStatusChanged(dev, ports.StageNoLongerActive)
			e.journal(dev, "failed", essidOf(best), "")
			req.setPhase(PhaseDone)
			return

		case PhaseDone:
			return
		}
	}
}

func essidOf(ap *domain.AccessPoint) string {
	if ap == nil {
		return ""
	}
	return ap.ESSID
}

// invalidate moves ap to the shared invalid list and out of consideration.
func (e *Engine) invalidate(req *request, ap *domain.AccessPoint) {
	if ap == nil {
		return
	}
	dup := ap.Clone()
	dup.Invalid = true
	e.invalid.Append(dup)
	req.dev.Visible().Remove(ap)
	if best := req.dev.BestAP(); best != nil && best.Matches(ap) {
		req.dev.SetBestAP(nil)
		req.dev.ClearFreeze()
	}
	e.journal(req.dev, "network_invalidated", ap.ESSID, "")
}

// waitForKey emits the key request and blocks on the user reply, polling at
// 2 Hz and honoring cancellation. The attempt counter advances per ESSID
// and resets when the ESSID changes.
func (e *Engine) waitForKey(req *request, ap *domain.AccessPoint) (string, domain.KeyType, error) {
	req.mu.Lock()
	for essid := range req.attempts {
		if essid != ap.ESSID {
			delete(req.attempts, essid)
		}
	}
	req.attempts[ap.ESSID]++
	attempt := req.attempts[ap.ESSID]
	req.keyReply = nil
	req.mu.Unlock()

	telemetry.KeyPromptsTotal.WithLabelValues(req.dev.Iface).Inc()
	e.deps.Prompt.RequestKey(req.dev, ap.ESSID, attempt)

	for {
		req.mu.Lock()
		reply := req.keyReply
		typ := req.keyType
		req.mu.Unlock()
		if reply != nil {
			if *reply == domain.KeyPromptCanceled {
				return "", domain.KeyTypeUnknown, domain.ErrUserCancelled
			}
			return *reply, typ, nil
		}
		if err := e.deps.Clock.Sleep(req.ctx, pollInterval); err != nil {
			return "", domain.KeyTypeUnknown, domain.ErrActivationCancelled
		}
	}
}

// setupRadio runs the full reset sequence before every (re)association. The
// settle delays are mandatory; some drivers drop commands issued too close
// to a state change.
func (e *Engine) setupRadio(req *request, ap *domain.AccessPoint, auth domain.AuthMethod) error {
	r := req.radio
	clock := e.deps.Clock

	if err := r.BringDown(); err != nil {
		return err
	}
	if err := clock.Sleep(req.ctx, settleDown); err != nil {
		return domain.ErrActivationCancelled
	}
	if err := r.BringUp(); err != nil {
		return err
	}
	if err := clock.Sleep(req.ctx, settleUp); err != nil {
		return domain.ErrActivationCancelled
	}

	r.SetMode(domain.ModeInfrastructure)
	r.SetESSID(" ") // clear any stale association
	if ap.Mode != domain.ModeUnknown {
		r.SetMode(ap.Mode)
	}
	r.SetBitrate(0)
	if ap.Mode == domain.ModeAdHoc && ap.Freq > 0 {
		r.SetFrequency(ap.Freq)
	}

	r.SetEncryptionKey(nil, domain.AuthNone)
	if ap.Encrypted && ap.Key != "" {
		raw, err := domain.MaterializeWEPKey(ap.Key, ap.KeyType)
		if err != nil {
			return err
		}
		if err := r.SetEncryptionKey(raw, auth); err != nil {
			return err
		}
	}

	if err := r.SetESSID(ap.ESSID); err != nil {
		return err
	}
	if err := clock.Sleep(req.ctx, e.associationPause(req)); err != nil {
		return domain.ErrActivationCancelled
	}
	return nil
}

// associationPause is 10s on cards with more than 14 channels, else 5s.
func (e *Engine) associationPause(req *request) time.Duration {
	rng, err := req.radio.Range()
	if err != nil {
		return ports.AssociationPause(0)
	}
	return ports.AssociationPause(rng.NumFrequencies())
}

// hasLink checks association: wireless by the associated base station
// address, wired by the MII link beat.
func (e *Engine) hasLink(req *request) bool {
	if req.dev.Type == domain.DeviceWired {
		up, err := req.radio.MIILink()
		return err == nil && up
	}
	bssid, err := req.radio.AssociatedBSSID()
	if err != nil || bssid == nil {
		return false
	}
	for _, b := range bssid {
		if b != 0 {
			return true
		}
	}
	return false
}

// createAdhoc builds a new ad-hoc network: pick the lowest 802.11b channel
// no visible AP claims, or a random one when all are taken.
func (e *Engine) createAdhoc(req *request, ap *domain.AccessPoint) error {
	rng, err := req.radio.Range()
	if err != nil {
		return err
	}

	var taken [adhocChannelMax + 1]bool
	for _, seen := range req.dev.Visible().Snapshot() {
		if ch := channelForFreq(seen.Freq); ch >= adhocChannelMin && ch <= adhocChannelMax {
			taken[ch] = true
		}
	}

	channel := 0
	for ch := adhocChannelMin; ch <= adhocChannelMax; ch++ {
		if taken[ch] {
			continue
		}
		if freq := freqForChannel(ch); supportsFreq(rng, freq) {
			channel = ch
			break
		}
	}
	if channel == 0 {
		channel = adhocChannelMin + rand.Intn(adhocChannelMax-adhocChannelMin+1)
	}
	freq := freqForChannel(channel)
	ap.Freq = freq

	r := req.radio
	if err := ports.EnsureUp(r); err != nil {
		return err
	}
	if err := r.SetFrequency(freq); err != nil {
		return err
	}
	if err := r.SetMode(domain.ModeAdHoc); err != nil {
		return err
	}
	r.SetEncryptionKey(nil, domain.AuthNone)
	if ap.Encrypted && ap.Key != "" {
		raw, err := domain.MaterializeWEPKey(ap.Key, ap.KeyType)
		if err != nil {
			return err
		}
		if err := r.SetEncryptionKey(raw, domain.AuthSharedKey); err != nil {
			return err
		}
	}
	if err := r.SetESSID(ap.ESSID); err != nil {
		return err
	}
	slog.Info("adhoc network created", "iface", req.dev.Iface, "essid", ap.ESSID, "channel", channel)
	return nil
}

type ipResult struct {
	ip        net.IP
	lease     ports.Lease
	haveLease bool
}

// configureIP acquires an address: auto-IP for ad-hoc networks and devices
// configured for it, DHCP when configured, static otherwise.
func (e *Engine) configureIP(req *request, ap *domain.AccessPoint, auth domain.AuthMethod) (ipResult, error) {
	dev := req.dev
	cfg := dev.Config()
	e.deps.Tools.DeleteDefaultRoute()

	adhoc := ap != nil && ap.Mode == domain.ModeAdHoc
	switch {
	case adhoc || cfg.AutoIP:
		hw, _ := req.radio.HWAddr()
		ip, ok := e.deps.AutoIP.Configure(req.ctx, dev.Iface, hw)
		if !ok {
			return ipResult{}, fmt.Errorf("%w: auto-ip", domain.ErrDhcpFailed)
		}
		e.finishIP(dev)
		return ipResult{ip: ip}, nil

	case cfg.UseDHCP:
		lease, ok, err := e.deps.DHCP.Request(req.ctx, dev.Iface)
		if err != nil || !ok {
			// Leave the interface up with no name so scanning goes on.
			e.dropRadioConfig(req)
			return ipResult{}, fmt.Errorf("%w: %s", domain.ErrDhcpFailed, dev.Iface)
		}
		e.finishIP(dev)
		return ipResult{ip: lease.IP, lease: lease, haveLease: true}, nil

	default:
		if err := e.deps.Tools.SetupStaticIPv4(dev.Iface, cfg); err != nil {
			return ipResult{}, err
		}
		e.finishIP(dev)
		return ipResult{ip: cfg.Address}, nil
	}
}

// finishIP does the post-configuration housekeeping shared by all paths.
func (e *Engine) finishIP(dev *domain.Device) {
	e.deps.Tools.FlushARPCache()
	e.deps.Tools.RestartMDNSResponder()
}

// announce sends a gratuitous ARP so peers refresh their caches.
func (e *Engine) announce(req *request, ip net.IP) {
	if ip == nil {
		return
	}
	hw, err := req.radio.HWAddr()
	if err != nil {
		return
	}
	if e.deps.Tools.AnnounceAddress(req.dev.Iface, hw, ip) == nil {
		telemetry.ARPAnnouncesTotal.WithLabelValues(req.dev.Iface).Inc()
	}
}

// dropRadioConfig clears ESSID and key but leaves the interface up.
func (e *Engine) dropRadioConfig(req *request) {
	if req.dev.Type != domain.DeviceWireless {
		return
	}
	req.radio.SetEncryptionKey(nil, domain.AuthNone)
	req.radio.SetESSID(" ")
	ports.EnsureUp(req.radio)
}

// leaseLoop keeps a DHCP lease alive: renew at the renewal mark, rebind at
// the rebind mark, release on cancellation.
func (e *Engine) leaseLoop(req *request, lease *ports.Lease) {
	dev := req.dev
	for {
		renewIn := lease.Renewal
		if renewIn <= 0 {
			renewIn = lease.Lifetime / 2
		}
		if renewIn <= 0 {
			// No timing info at all: hold the lease until cancelled.
			<-req.ctx.Done()
			e.deps.DHCP.Release(dev.Iface)
			return
		}
		if err := e.deps.Clock.Sleep(req.ctx, renewIn); err != nil {
			e.deps.DHCP.Release(dev.Iface)
			return
		}

		fresh, ok, err := e.deps.DHCP.Renew(req.ctx, dev.Iface)
		if err == nil && ok {
			e.applyLeaseChange(req, lease, fresh)
			continue
		}
		if req.cancelled() {
			e.deps.DHCP.Release(dev.Iface)
			return
		}

		// Renewal declined: wait out the rebind window, then rebind with
		// a full request.
		rebindIn := lease.Rebind - renewIn
		if rebindIn > 0 {
			if e.deps.Clock.Sleep(req.ctx, rebindIn) != nil {
				e.deps.DHCP.Release(dev.Iface)
				return
			}
		}
		fresh, ok, err = e.deps.DHCP.Request(req.ctx, dev.Iface)
		if err != nil || !ok {
			slog.Warn("dhcp rebind failed, lease lost", "iface", dev.Iface)
			e.deps.Events.DeviceStatusChanged(dev, ports.StageNoLongerActive)
			return
		}
		e.applyLeaseChange(req, lease, fresh)
	}
}

// applyLeaseChange folds a renewed lease in, republishing the address when
// the server moved us.
func (e *Engine) applyLeaseChange(req *request, lease *ports.Lease, fresh ports.Lease) {
	changed := lease.IP != nil && fresh.IP != nil && !lease.IP.Equal(fresh.IP)
	*lease = fresh
	if changed {
		req.dev.SetIP4(fresh.IP)
		e.announce(req, fresh.IP)
		e.deps.Events.DeviceIP4AddressChanged(req.dev, fresh.IP)
		e.journal(req.dev, "lease_moved", "", fresh.IP.String())
	}
}

// unwind restores the radio to a neutral state after cancellation.
func (e *Engine) unwind(req *request) {
	if req.dev.Type == domain.DeviceWireless {
		req.radio.SetESSID(" ")
		req.radio.SetEncryptionKey(nil, domain.AuthNone)
		req.radio.SetMode(domain.ModeInfrastructure)
	}
	req.dev.SetNowScanning(false)
	e.deps.Events.DeviceStatusChanged(req.dev, ports.StageNoLongerActive)
}

// Supported 802.11b channel plan.
func freqForChannel(ch int) float64 {
	if ch == 14 {
		return 2484
	}
	return 2412 + float64(ch-1)*5
}

func channelForFreq(freq float64) int {
	if freq == 0 {
		return 0
	}
	if freq == 2484 {
		return 14
	}
	ch := int((freq-2412)/5) + 1
	if ch < 1 || ch > 13 {
		return 0
	}
	return ch
}

func supportsFreq(rng ports.RadioRange, freq float64) bool {
	if len(rng.Frequencies) == 0 {
		return true
	}
	for _, f := range rng.Frequencies {
		if f == freq {
			return true
		}
	}
	return false
}
