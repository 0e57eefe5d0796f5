// Package scanner merges consecutive radio scans into a stable view of
// visible networks and cross-references them with administrator-allowed
// networks.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
	"github.com/lcalzada-xor/linkd/internal/telemetry"
)

// Reconciler runs periodic scans for one wireless device and maintains its
// merged AP view. It is driven by a timer on a helper goroutine; a tick that
// finds the scan lock held is skipped.
type Reconciler struct {
	dev     *domain.Device
	radio   ports.Radio
	allowed *domain.APList
	events  ports.EventSink
	journal ports.Journal
	clock   ports.Clock

	// announced tracks which networks have an outstanding "appeared"
	// event, so deltas fire exactly once per visibility transition.
	// Touched only under the device scan lock.
	announced map[string]*domain.AccessPoint

	// OnReconciled runs after every completed tick, with the device lock
	// released. The best-AP selector hangs off this hook.
	OnReconciled func(dev *domain.Device)
}

// New creates a reconciler for dev.
func New(dev *domain.Device, radio ports.Radio, allowed *domain.APList,
	events ports.EventSink, journal ports.Journal, clock ports.Clock) *Reconciler {
	return &Reconciler{
		dev:       dev,
		radio:     radio,
		allowed:   allowed,
		events:    events,
		journal:   journal,
		clock:     clock,
		announced: make(map[string]*domain.AccessPoint),
	}
}

// Run drives ticks at the given interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one scan cycle. Safe to call from a timer goroutine; it
// never blocks on a scan already in progress.
func (r *Reconciler) Tick(ctx context.Context) {
	w := r.dev.Wireless()
	if w == nil || !r.dev.Supported() {
		return
	}
	if !r.dev.ScanMu.TryLock() {
		// Scan or activation radio traffic in progress, skip this tick.
		return
	}
	defer r.dev.ScanMu.Unlock()

	if !w.ScanCapable {
		r.pseudoScan()
		return
	}

	fresh, err := r.runScan(ctx)
	if err != nil {
		slog.Debug("scan failed", "iface", r.dev.Iface, "err", err)
		telemetry.ScansTotal.WithLabelValues(r.dev.Iface, "error").Inc()
		return
	}
	telemetry.ScansTotal.WithLabelValues(r.dev.Iface, "ok").Inc()

	r.reconcile(fresh)
	if r.OnReconciled != nil {
		r.OnReconciled(r.dev)
	}
}

// runScan records radio state, forces infrastructure mode, issues the scan
// (retrying once when the driver has no data yet) and restores the state.
func (r *Reconciler) runScan(ctx context.Context) (*domain.APList, error) {
	prevMode, _ := r.radio.Mode()
	prevFreq, _ := r.radio.Frequency()
	prevRate, _ := r.radio.Bitrate()

	if err := r.radio.SetMode(domain.ModeInfrastructure); err != nil {
		return nil, err
	}
	defer func() {
		if prevMode != domain.ModeUnknown {
			r.radio.SetMode(prevMode)
		}
		if prevFreq > 0 {
			r.radio.SetFrequency(prevFreq)
		}
		if prevRate > 0 {
			r.radio.SetBitrate(prevRate)
		}
	}()

	results, err := r.radio.Scan(ctx)
	if errors.Is(err, domain.ErrScanNotReady) {
		rng, rerr := r.radio.Range()
		if rerr != nil {
			return nil, rerr
		}
		if serr := r.clock.Sleep(ctx, ports.AssociationPause(rng.NumFrequencies())/2); serr != nil {
			return nil, serr
		}
		results, err = r.radio.Scan(ctx)
	}
	if err != nil {
		return nil, err
	}

	fresh := domain.NewAPList(domain.ListDeviceScan)
	now := r.clock.Now()
	for _, res := range results {
		ap := &domain.AccessPoint{
			ESSID:     domain.NormalizeESSID(res.ESSID),
			BSSID:     res.BSSID,
			Mode:      res.Mode,
			Freq:      res.Freq,
			Strength:  res.QualityPct,
			Encrypted: !res.KeyDisabled,
			LastSeen:  now,
		}
		if ap.Mode == domain.ModeUnknown {
			ap.Mode = domain.ModeInfrastructure
		}
		if ap.Validate() != nil {
			continue
		}
		fresh.Append(ap)
	}
	return fresh, nil
}

// reconcile shifts the snapshot ring, rebuilds the visible list and emits
// appear/disappear deltas against the 4-scan horizon.
func (r *Reconciler) reconcile(fresh *domain.APList) {
	w := r.dev.Wireless()
	prevVisible := r.dev.Visible()

	// Horizon of the delta computation: the two oldest snapshots, one of
	// which is shifted out of the ring this cycle.
	horizon := domain.Combine(domain.ListDeviceScan, w.S2, w.S3)

	w.S3 = w.S2
	w.S2 = w.S1
	w.S1 = fresh

	// Two-scan window damps driver flakiness.
	visible := domain.Combine(domain.ListDeviceScan, w.S1, w.S2)

	// Recover names for cloaking base stations from recent history and
	// from the allowed list.
	visible.CopyESSIDsByAddress(prevVisible)
	visible.CopyESSIDsByAddress(r.allowed)
	visible.CopyProperties(r.allowed)

	r.preserveArtificial(prevVisible, visible)

	r.dev.SetVisible(visible)
	telemetry.ScanAPsSeen.WithLabelValues(r.dev.Iface).Set(float64(visible.Len()))
	r.emitDeltas(visible, horizon)
}

// emitDeltas announces networks entering the view and retracts announced
// ones only once they have left both the view and the trailing snapshot
// horizon, giving a 4-scan window of event stability.
func (r *Reconciler) emitDeltas(visible, horizon *domain.APList) {
	for _, ap := range visible.Snapshot() {
		if ap.ESSID == "" {
			continue // no path for nameless APs
		}
		if _, known := r.announced[ap.ESSID]; known {
			continue
		}
		r.announced[ap.ESSID] = ap
		r.events.WirelessNetworkAppeared(r.dev, ap)
		r.journal.Record(context.Background(), ports.Event{
			Device: r.dev.UDI, Kind: "network_appeared", ESSID: ap.ESSID,
		})
	}
	for essid, ap := range r.announced {
		if visible.ContainsESSID(essid) || horizon.ContainsESSID(essid) {
			continue
		}
		delete(r.announced, essid)
		r.events.WirelessNetworkDisappeared(r.dev, ap)
		r.journal.Record(context.Background(), ports.Event{
			Device: r.dev.UDI, Kind: "network_disappeared", ESSID: essid,
		})
	}
}

// preserveArtificial carries user-added APs that the scan cannot see into
// the new view while the card is associated with one of them.
func (r *Reconciler) preserveArtificial(prev, visible *domain.APList) {
	assoc, err := r.radio.AssociatedBSSID()
	if err != nil {
		return
	}
	for _, ap := range prev.Snapshot() {
		if !ap.Artificial || visible.Contains(ap) {
			continue
		}
		if ap.HasBSSID() && assoc != nil && ap.BSSID.String() == assoc.String() {
			visible.Append(ap)
		}
	}
}

// pseudoScan serves scan-incapable cards: the current association, if any,
// becomes the single visible AP, enriched from the allowed list.
func (r *Reconciler) pseudoScan() {
	essid, err := r.radio.ESSID()
	if err != nil {
		return
	}
	visible := domain.NewAPList(domain.ListDeviceScan)
	essid = domain.NormalizeESSID(essid)
	if essid != "" {
		ap := &domain.AccessPoint{
			ESSID:    essid,
			Mode:     domain.ModeInfrastructure,
			LastSeen: r.clock.Now(),
		}
		if bssid, err := r.radio.AssociatedBSSID(); err == nil {
			ap.BSSID = bssid
		}
		if pct, _, valid, err := r.radio.SignalStats(); err == nil && valid {
			ap.Strength = pct
		}
		visible.Append(ap)
		visible.CopyProperties(r.allowed)
	}

	r.dev.SetVisible(visible)
	r.emitDeltas(visible, domain.NewAPList(domain.ListDeviceScan))
	if r.OnReconciled != nil {
		r.OnReconciled(r.dev)
	}
}
