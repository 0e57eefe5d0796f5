package activation

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// FindAndUseESSID is the user override path: confirm the named network
// exists (it may be cloaked), learn whether it needs encryption, install the
// user's key and freeze it as the best selection.
func (e *Engine) FindAndUseESSID(ctx context.Context, dev *domain.Device, radio ports.Radio,
	essid, key string, keyType domain.KeyType) error {
	if !dev.Supported() {
		return fmt.Errorf("%w: %s", domain.ErrNoDriverSupport, dev.Iface)
	}
	if dev.Wireless() == nil {
		return fmt.Errorf("%w: %s is not wireless", domain.ErrInvalidArgument, dev.Iface)
	}
	if err := domain.ValidateESSID(essid); err != nil {
		return err
	}

	e.Cancel(dev)

	bssid, encNeeded, err := e.probeESSID(ctx, dev, radio, essid, key, keyType)
	if err != nil {
		return err
	}

	visible := dev.Visible()
	ap := visible.ByESSID(essid)
	if ap == nil {
		// Confirmed to exist but invisible to scans: remember it as an
		// artificial record so future scans preserve it.
		ap = &domain.AccessPoint{
			ESSID:      essid,
			BSSID:      bssid,
			Mode:       domain.ModeInfrastructure,
			Encrypted:  encNeeded,
			Artificial: true,
			LastSeen:   e.deps.Clock.Now(),
		}
		visible.Append(ap)
	}

	if match := e.allowed.ByESSID(essid); match != nil && match.Key != "" {
		ap.Key = match.Key
		ap.KeyType = match.KeyType
	}
	if key != "" {
		ap.Encrypted = true
		ap.Key = key
		ap.KeyType = keyType
	}

	dev.Freeze(ap)
	e.journal(dev, "network_forced", essid, "")
	slog.Info("user selected network", "iface", dev.Iface, "essid", essid,
		"encrypted", ap.Encrypted)
	return nil
}

// probeESSID tries each authentication mode in turn until the card
// associates, returning the observed base station and whether encryption
// was needed. Known-unencrypted networks try the open path first.
func (e *Engine) probeESSID(ctx context.Context, dev *domain.Device, radio ports.Radio,
	essid, key string, keyType domain.KeyType) (net.HardwareAddr, bool, error) {

	order := []domain.AuthMethod{domain.AuthSharedKey, domain.AuthOpenSystem, domain.AuthNone}
	if known := dev.Visible().ByESSID(essid); known != nil && !known.Encrypted {
		order = []domain.AuthMethod{domain.AuthNone, domain.AuthSharedKey, domain.AuthOpenSystem}
	}

	rng, _ := radio.Range()
	pause := ports.AssociationPause(rng.NumFrequencies())

	for _, auth := range order {
		if err := ctx.Err(); err != nil {
			return nil, false, domain.ErrActivationCancelled
		}

		if auth == domain.AuthNone || key == "" {
			radio.SetEncryptionKey(nil, domain.AuthNone)
		} else {
			raw, err := domain.MaterializeWEPKey(key, keyType)
			if err != nil {
				return nil, false, err
			}
			radio.SetEncryptionKey(raw, auth)
		}
		radio.SetMode(domain.ModeInfrastructure)
		if err := radio.SetESSID(essid); err != nil {
			return nil, false, err
		}
		if err := e.deps.Clock.Sleep(ctx, pause); err != nil {
			return nil, false, domain.ErrActivationCancelled
		}

		bssid, err := radio.AssociatedBSSID()
		if err != nil || !nonzeroHW(bssid) {
			continue
		}
		current, err := radio.ESSID()
		if err == nil && current == essid {
			return bssid, auth != domain.AuthNone, nil
		}
	}
	return nil, false, fmt.Errorf("%w: %s", domain.ErrAssociationFailed, essid)
}

func nonzeroHW(hw net.HardwareAddr) bool {
	for _, b := range hw {
		if b != 0 {
			return true
		}
	}
	return false
}
