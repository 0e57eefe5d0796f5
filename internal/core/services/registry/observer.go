package registry

import (
	"sync"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

// DeviceObserver is implemented by components interested in device lifecycle
// events.
type DeviceObserver interface {
	OnDeviceAdded(dev *domain.Device)
	OnDeviceRemoved(dev *domain.Device)
}

// RegistrySubject manages observers and notifies them of events.
type RegistrySubject struct {
	mu        sync.RWMutex
	observers []DeviceObserver
}

// NewRegistrySubject creates a new subject.
func NewRegistrySubject() *RegistrySubject {
	return &RegistrySubject{}
}

// AddObserver registers a new observer.
func (s *RegistrySubject) AddObserver(obs DeviceObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// NotifyAdded fans a device-added event out to all observers. Delivery is
// synchronous; observers queue their own slow work.
func (s *RegistrySubject) NotifyAdded(dev *domain.Device) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, obs := range s.observers {
		obs.OnDeviceAdded(dev)
	}
}

// NotifyRemoved fans a device-removed event out to all observers.
func (s *RegistrySubject) NotifyRemoved(dev *domain.Device) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, obs := range s.observers {
		obs.OnDeviceRemoved(dev)
	}
}
