// Package selector computes the preferred access point for a wireless
// device from its visible, allowed and invalid network sets.
package selector

import (
	"log/slog"
	"time"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// Selector owns best-AP computation against the shared allowed and invalid
// lists.
type Selector struct {
	allowed *domain.APList
	invalid *domain.APList
}

// New creates a selector around the shared lists.
func New(allowed, invalid *domain.APList) *Selector {
	return &Selector{allowed: allowed, invalid: invalid}
}

// UpdateBest recomputes the device's best AP from the current visible list.
// A frozen selection is kept while its AP stays visible (and valid) or is
// user-created; otherwise the freeze is dropped and the maxima race decides.
// With no candidate at all, the radio is left up but unconfigured so
// scanning continues.
func (s *Selector) UpdateBest(dev *domain.Device, radio ports.Radio) *domain.AccessPoint {
	w := dev.Wireless()
	if w == nil {
		return nil
	}
	visible := dev.Visible()

	dev.BestMu.Lock()
	current := w.BestAP
	if w.Frozen && current != nil {
		stillGood := (visible.Contains(current) && !s.invalid.ContainsESSID(current.ESSID)) ||
			current.UserCreated
		if stillGood {
			dev.BestMu.Unlock()
			return current
		}
		w.Frozen = false
	}
	dev.BestMu.Unlock()

	// Two running maxima keyed by the trusted flag, ranked by the allowed
	// entry's timestamp (most recently used network wins).
	var bestTrusted, bestUntrusted *domain.AccessPoint
	var trustedSeen, untrustedSeen time.Time
	for _, ap := range visible.Snapshot() {
		if ap.ESSID == "" || s.invalid.ContainsESSID(ap.ESSID) {
			continue
		}
		match := s.allowed.ByESSID(ap.ESSID)
		if match == nil {
			continue
		}
		if match.Key != "" {
			ap.Key = match.Key
			ap.KeyType = match.KeyType
		}
		if match.Auth != domain.AuthUnknown {
			ap.Auth = match.Auth
		}
		if match.Trusted {
			if bestTrusted == nil || match.LastSeen.After(trustedSeen) {
				ap.Trusted = true
				bestTrusted = ap
				trustedSeen = match.LastSeen
			}
		} else {
			if bestUntrusted == nil || match.LastSeen.After(untrustedSeen) {
				bestUntrusted = ap
				untrustedSeen = match.LastSeen
			}
		}
	}

	best := bestTrusted
	if best == nil {
		best = bestUntrusted
	}

	dev.BestMu.Lock()
	changed := !sameAP(w.BestAP, best)
	w.BestAP = best
	if changed {
		w.Frozen = false
	}
	dev.BestMu.Unlock()

	if changed {
		name := "(none)"
		if best != nil {
			name = best.ESSID
		}
		slog.Info("best network changed", "iface", dev.Iface, "essid", name)
	}

	if best == nil && radio != nil {
		// Nothing to join: drop ESSID and key, keep the interface up so
		// scanning keeps running.
		radio.SetEncryptionKey(nil, domain.AuthNone)
		radio.SetESSID(" ")
		ports.EnsureUp(radio)
	}
	return best
}

func sameAP(a, b *domain.AccessPoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Matches(b)
}
