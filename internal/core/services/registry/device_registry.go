package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// DeviceRegistry is the process-wide set of managed interfaces. Devices are
// created on hardware-added events and destroyed on hardware-removed events;
// unsupported drivers are registered but refuse every other operation.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device // keyed by UDI

	props   ports.PropertyStore
	subject *RegistrySubject

	// Shared across all devices, each with its own lock.
	Allowed *domain.APList
	Invalid *domain.APList
}

// NewDeviceRegistry creates an empty registry around the shared allowed and
// invalid lists.
func NewDeviceRegistry(props ports.PropertyStore) *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[string]*domain.Device),
		props:   props,
		subject: NewRegistrySubject(),
		Allowed: domain.NewAPList(domain.ListAllowed),
		Invalid: domain.NewAPList(domain.ListInvalid),
	}
}

// Subject exposes observer registration.
func (r *DeviceRegistry) Subject() *RegistrySubject { return r.subject }

// AddDevice handles a hardware-added event. The driver classification comes
// from the property store; synthetic devices are fully supported by fiat.
func (r *DeviceRegistry) AddDevice(udi, iface string, typ domain.DeviceType, synthetic bool) (*domain.Device, error) {
	r.mu.Lock()
	if _, exists := r.devices[udi]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: device %s already registered", domain.ErrInvalidArgument, udi)
	}

	support := domain.DriverFullySupported
	if !synthetic && r.props != nil {
		support = r.props.DriverSupport(udi, iface)
	}
	dev := domain.NewDevice(udi, iface, typ, support)
	dev.Test = synthetic
	r.devices[udi] = dev
	r.mu.Unlock()

	slog.Info("device added", "udi", udi, "iface", iface, "type", typ.String(),
		"supported", dev.Supported())
	r.subject.NotifyAdded(dev)
	return dev, nil
}

// RemoveDevice handles a hardware-removed event.
func (r *DeviceRegistry) RemoveDevice(udi string) *domain.Device {
	r.mu.Lock()
	dev := r.devices[udi]
	delete(r.devices, udi)
	r.mu.Unlock()

	if dev != nil {
		slog.Info("device removed", "udi", udi, "iface", dev.Iface)
		r.subject.NotifyRemoved(dev)
	}
	return dev
}

// Get returns the device with the given UDI.
func (r *DeviceRegistry) Get(udi string) (*domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[udi]
	return dev, ok
}

// GetByIface returns the device bound to a kernel interface name.
func (r *DeviceRegistry) GetByIface(iface string) (*domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dev := range r.devices {
		if dev.Iface == iface {
			return dev, true
		}
	}
	return nil, false
}

// List snapshots the current membership.
func (r *DeviceRegistry) List() []*domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	return out
}

// MarkInvalid adds ap to the shared invalid list. The list only grows until
// policy explicitly clears it.
func (r *DeviceRegistry) MarkInvalid(ap *domain.AccessPoint) {
	if ap == nil {
		return
	}
	dup := ap.Clone()
	dup.Invalid = true
	r.Invalid.Append(dup)
}

// ClearInvalid is the explicit policy action emptying the invalid list.
func (r *DeviceRegistry) ClearInvalid() {
	r.Invalid.Clear()
	slog.Info("invalid network list cleared")
}
