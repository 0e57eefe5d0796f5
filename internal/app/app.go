//go:build linux

// Package app wires the link-management core to its adapters and exposes
// the control facade the web surface drives.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lcalzada-xor/linkd/internal/adapters/autoip"
	"github.com/lcalzada-xor/linkd/internal/adapters/dhcp"
	"github.com/lcalzada-xor/linkd/internal/adapters/hwinfo"
	"github.com/lcalzada-xor/linkd/internal/adapters/radio"
	"github.com/lcalzada-xor/linkd/internal/adapters/storage"
	"github.com/lcalzada-xor/linkd/internal/adapters/system"
	"github.com/lcalzada-xor/linkd/internal/adapters/web"
	"github.com/lcalzada-xor/linkd/internal/config"
	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
	"github.com/lcalzada-xor/linkd/internal/core/services/activation"
	"github.com/lcalzada-xor/linkd/internal/core/services/registry"
	"github.com/lcalzada-xor/linkd/internal/core/services/scanner"
	"github.com/lcalzada-xor/linkd/internal/core/services/selector"
	"github.com/lcalzada-xor/linkd/internal/telemetry"
)

const signalSampleInterval = 3 * time.Second

// deviceRuntime bundles what one managed device runs: its radio surface and
// the helper goroutines.
type deviceRuntime struct {
	dev        *domain.Device
	radio      ports.Radio
	reconciler *scanner.Reconciler
	sampler    *scanner.Sampler
	stop       context.CancelFunc
}

// Application is the facade over the whole daemon. It implements
// ports.LinkService.
type Application struct {
	Config   *config.Config
	Registry *registry.DeviceRegistry
	Engine   *activation.Engine
	Hub      *web.Hub
	Journal  *storage.Journal
	HTTP     *http.Server

	selector *selector.Selector

	mu       sync.Mutex
	runtimes map[string]*deviceRuntime
	runCtx   context.Context
	runStop  context.CancelFunc
}

// New creates an Application and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config:   cfg,
		runtimes: make(map[string]*deviceRuntime),
	}
	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (a *Application) bootstrap() error {
	telemetry.InitMetrics()

	if err := os.MkdirAll(filepath.Dir(a.Config.DBPath), 0o755); err != nil {
		return err
	}
	journal, err := storage.Open(a.Config.DBPath, a.Config.JournalMaxRows)
	if err != nil {
		return err
	}
	a.Journal = journal

	a.Registry = registry.NewDeviceRegistry(hwinfo.New(""))
	a.Hub = web.NewHub()
	a.selector = selector.New(a.Registry.Allowed, a.Registry.Invalid)

	tools := system.New(a.Config.MDNSRestartCmd)
	a.Engine = activation.NewEngine(activation.Deps{
		Events:  a.Hub,
		DHCP:    dhcp.New(a.Config.DHCPClientPath, a.readIP4),
		AutoIP:  autoip.New(tools),
		Tools:   tools,
		Prompt:  a.Hub,
		Journal: journal,
		Clock:   ports.SystemClock{},
	}, a.Registry.Allowed, a.Registry.Invalid)

	a.Hub.Attach(a)

	server := web.NewServer(a, a.Hub)
	a.HTTP = &http.Server{
		Addr:    a.Config.Addr,
		Handler: web.NewRouter(server),
	}
	return nil
}

// Run discovers devices, starts the per-device helpers and serves HTTP
// until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.runCtx, a.runStop = context.WithCancel(ctx)

	a.Engine.StartingUp.Store(true)
	if err := a.discoverDevices(); err != nil {
		return err
	}
	a.activateInitial()
	a.Engine.StartingUp.Store(false)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http surface listening", "addr", a.Config.Addr)
		if err := a.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the helpers, in-flight activations and the HTTP surface.
func (a *Application) Shutdown(ctx context.Context) {
	if a.runStop != nil {
		a.runStop()
	}
	for _, dev := range a.Registry.List() {
		a.Engine.Cancel(dev)
	}
	a.mu.Lock()
	for _, rt := range a.runtimes {
		rt.stop()
	}
	a.mu.Unlock()
	a.HTTP.Shutdown(ctx)
}

// discoverDevices enumerates /sys/class/net and registers every interface
// except loopback (virtual interfaces included), plus the synthetic device
// when test devices are enabled.
func (a *Application) discoverDevices() error {
	entries, err := os.ReadDir("/sys/class/net")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		iface := entry.Name()
		if iface == "lo" {
			continue
		}
		typ := domain.DeviceWired
		if _, err := os.Stat(filepath.Join("/sys/class/net", iface, "wireless")); err == nil {
			typ = domain.DeviceWireless
		} else if _, err := os.Stat(filepath.Join("/sys/class/net", iface, "phy80211")); err == nil {
			typ = domain.DeviceWireless
		}
		udi := a.Config.DevicesRoot + "/" + iface
		if err := a.addDevice(udi, iface, typ, false); err != nil {
			slog.Warn("device registration failed", "iface", iface, "err", err)
		}
	}

	if a.Config.EnableTestDevs {
		udi := a.Config.DevicesRoot + "/testwifi0"
		if err := a.addDevice(udi, "testwifi0", domain.DeviceWireless, true); err != nil {
			return err
		}
	}
	return nil
}

func (a *Application) addDevice(udi, iface string, typ domain.DeviceType, synthetic bool) error {
	dev, err := a.Registry.AddDevice(udi, iface, typ, synthetic)
	if err != nil {
		return err
	}

	var rdo ports.Radio
	if synthetic {
		rdo = radio.NewFake(iface)
	} else {
		ctl, err := radio.New(iface)
		if err != nil {
			return err
		}
		rdo = ctl
	}

	if hw, err := rdo.HWAddr(); err == nil {
		dev.SetHWAddr(hw)
	}
	if ip, err := rdo.IP4(); err == nil {
		dev.SetIP4(ip)
	}
	dev.SetConfig(domain.IPConfig{UseDHCP: true})
	if w := dev.Wireless(); w != nil {
		if rng, err := rdo.Range(); err == nil {
			w.NumFrequencies = rng.NumFrequencies()
			w.Frequencies = rng.Frequencies
			w.MaxQuality = rng.MaxQuality
		}
	}

	rtCtx, stop := context.WithCancel(context.Background())
	rt := &deviceRuntime{dev: dev, radio: rdo, stop: stop}

	if dev.Type == domain.DeviceWireless && dev.Supported() {
		rt.reconciler = scanner.New(dev, rdo, a.Registry.Allowed, a.Hub, a.Journal,
			ports.SystemClock{})
		rt.reconciler.OnReconciled = a.onReconciled
		rt.sampler = scanner.NewSampler(dev, rdo)
		go rt.reconciler.Run(rtCtx, a.Config.ScanInterval)
		go rt.sampler.Run(rtCtx, signalSampleInterval)
	}

	a.mu.Lock()
	a.runtimes[udi] = rt
	a.mu.Unlock()
	return nil
}

// activateInitial kicks the first activation round after discovery.
func (a *Application) activateInitial() {
	for _, dev := range a.Registry.List() {
		if !dev.Supported() {
			continue
		}
		rt := a.runtime(dev.UDI)
		if rt == nil {
			continue
		}
		if dev.Type == domain.DeviceWired {
			up, err := rt.radio.MIILink()
			dev.SetLinkActive(err == nil && up)
			if err != nil || !up {
				continue
			}
		}
		if err := a.Engine.Begin(dev, rt.radio); err != nil {
			slog.Warn("initial activation rejected", "iface", dev.Iface, "err", err)
		}
	}
}

// onReconciled recomputes the best AP after every scan cycle and triggers
// activation when a candidate appears.
func (a *Application) onReconciled(dev *domain.Device) {
	rt := a.runtime(dev.UDI)
	if rt == nil {
		return
	}
	best := a.selector.UpdateBest(dev, rt.radio)
	if best != nil && !a.Engine.IsActivating(dev) {
		a.Engine.Begin(dev, rt.radio)
	}
}

func (a *Application) runtime(udi string) *deviceRuntime {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runtimes[udi]
}

// readIP4 lets the DHCP shim read back the address its client bound.
func (a *Application) readIP4(iface string) (ip net.IP, err error) {
	dev, ok := a.Registry.GetByIface(iface)
	if !ok {
		return nil, fmt.Errorf("%w: unknown interface %s", domain.ErrInvalidArgument, iface)
	}
	rt := a.runtime(dev.UDI)
	if rt == nil {
		return nil, fmt.Errorf("%w: no runtime for %s", domain.ErrInvalidArgument, iface)
	}
	return rt.radio.IP4()
}
