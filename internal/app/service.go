//go:build linux

package app

import (
	"context"
	"fmt"

	"github.com/lcalzada-xor/linkd/internal/adapters/export"
	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// The Application is the ports.LinkService the web adapter drives.

func (a *Application) Devices() []*domain.Device {
	return a.Registry.List()
}

func (a *Application) Device(udi string) (*domain.Device, bool) {
	return a.Registry.Get(udi)
}

func (a *Application) Activate(udi string) error {
	dev, rt, err := a.lookup(udi)
	if err != nil {
		return err
	}
	return a.Engine.Begin(dev, rt.radio)
}

func (a *Application) CancelActivation(udi string) error {
	dev, _, err := a.lookup(udi)
	if err != nil {
		return err
	}
	a.Engine.Cancel(dev)
	return nil
}

func (a *Application) ForceESSID(ctx context.Context, udi, essid, key string,
	keyType domain.KeyType) error {
	dev, rt, err := a.lookup(udi)
	if err != nil {
		return err
	}
	if err := a.Engine.FindAndUseESSID(ctx, dev, rt.radio, essid, key, keyType); err != nil {
		return err
	}
	return a.Engine.Begin(dev, rt.radio)
}

func (a *Application) DeliverKey(udi, key string, keyType domain.KeyType) {
	if dev, ok := a.Registry.Get(udi); ok {
		a.Engine.DeliverKey(dev, key, keyType)
	}
}

func (a *Application) Allowed() *domain.APList { return a.Registry.Allowed }
func (a *Application) Invalid() *domain.APList { return a.Registry.Invalid }
func (a *Application) ClearInvalid()           { a.Registry.ClearInvalid() }

func (a *Application) RecentEvents(ctx context.Context, n int) ([]ports.Event, error) {
	return a.Journal.Recent(ctx, n)
}

// DiagnosticsReport snapshots the world and renders the PDF.
func (a *Application) DiagnosticsReport(ctx context.Context) ([]byte, error) {
	in := export.ReportInput{
		GeneratedAt: ports.SystemClock{}.Now(),
		Networks:    make(map[string][]domain.APView),
	}
	for _, dev := range a.Registry.List() {
		in.Devices = append(in.Devices, dev.View())
		for _, ap := range dev.Visible().Snapshot() {
			in.Networks[dev.UDI] = append(in.Networks[dev.UDI], ap.View())
		}
	}
	events, err := a.Journal.Recent(ctx, a.Config.ReportEventRows)
	if err != nil {
		return nil, err
	}
	in.Events = events
	return export.Generate(in)
}

func (a *Application) lookup(udi string) (*domain.Device, *deviceRuntime, error) {
	dev, ok := a.Registry.Get(udi)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no such device %s", domain.ErrInvalidArgument, udi)
	}
	rt := a.runtime(udi)
	if rt == nil {
		return nil, nil, fmt.Errorf("%w: device %s has no radio", domain.ErrInvalidArgument, udi)
	}
	return dev, rt, nil
}
