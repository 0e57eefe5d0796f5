// Package hwinfo answers hardware property queries from sysfs, standing in
// for the platform property store.
package hwinfo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

// knownBadDrivers reject enough commands that managing them does more harm
// than good.
var knownBadDrivers = map[string]bool{
	"eepro100": true,
}

// semiSupportedDrivers accept configuration but lie about scan results or
// association state.
var semiSupportedDrivers = map[string]bool{
	"orinoco":   true,
	"atmel":     true,
	"prism2_cs": true,
}

// Store reads properties from the sysfs tree.
type Store struct {
	root string
}

// New creates a store; root is normally "/sys/class/net".
func New(root string) *Store {
	if root == "" {
		root = "/sys/class/net"
	}
	return &Store{root: root}
}

// Exists reports whether the device exposes the given sysfs attribute.
func (s *Store) Exists(udi, key string) bool {
	_, err := os.Stat(filepath.Join(s.root, udi, key))
	return err == nil
}

// GetBool reads a 0/1 sysfs attribute.
func (s *Store) GetBool(udi, key string) bool {
	raw, err := os.ReadFile(filepath.Join(s.root, udi, key))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(raw)) == "1"
}

// DriverSupport classifies the driver behind iface by its sysfs driver
// link.
func (s *Store) DriverSupport(udi, iface string) domain.DriverSupport {
	link, err := os.Readlink(filepath.Join(s.root, iface, "device", "driver"))
	if err != nil {
		// No driver information: assume the common case.
		return domain.DriverFullySupported
	}
	driver := filepath.Base(link)
	if knownBadDrivers[driver] {
		return domain.DriverUnsupported
	}
	if semiSupportedDrivers[driver] {
		return domain.DriverSemiSupported
	}
	return domain.DriverFullySupported
}
