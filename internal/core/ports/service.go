package ports

import (
	"context"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

// LinkService is the control surface the web adapter drives. The
// application facade implements it.
type LinkService interface {
	Devices() []*domain.Device
	Device(udi string) (*domain.Device, bool)

	Activate(udi string) error
	CancelActivation(udi string) error
	ForceESSID(ctx context.Context, udi, essid, key string, keyType domain.KeyType) error
	DeliverKey(udi, key string, keyType domain.KeyType)

	Allowed() *domain.APList
	Invalid() *domain.APList
	ClearInvalid()

	RecentEvents(ctx context.Context, n int) ([]Event, error)
	DiagnosticsReport(ctx context.Context) ([]byte, error)
}
