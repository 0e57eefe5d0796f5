package scanner

import (
	"context"
	"time"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
	"github.com/lcalzada-xor/linkd/internal/telemetry"
)

// Sampler keeps a device's smoothed signal percent fresh. Up to three
// consecutive invalid driver readings repeat the last valid value; the
// fourth forces the smoothed value to unknown.
type Sampler struct {
	dev   *domain.Device
	radio ports.Radio
}

// NewSampler creates a sampler for dev.
func NewSampler(dev *domain.Device, radio ports.Radio) *Sampler {
	return &Sampler{dev: dev, radio: radio}
}

// Sample folds one reading into the device state.
func (s *Sampler) Sample() {
	pct, noise, valid, err := s.radio.SignalStats()
	if err != nil {
		valid = false
	}
	s.dev.RecordSignal(pct, noise, valid)
	if w := s.dev.Wireless(); w != nil && w.SignalPercent != domain.SignalUnknown {
		telemetry.SignalPercent.WithLabelValues(s.dev.Iface).Set(float64(w.SignalPercent))
	}
}

// Run samples at the given interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}
