// Package autoip picks a link-local 169.254/16 address for interfaces with
// no DHCP service, ad-hoc networks in particular.
package autoip

import (
	"context"
	"log/slog"
	"net"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// Configurer implements ports.AutoIP. The candidate address derives from
// the hardware address so the same card converges on the same address.
type Configurer struct {
	tools ports.SystemTools
}

// New creates the auto-IP collaborator around the system helpers that
// apply the chosen address.
func New(tools ports.SystemTools) *Configurer {
	return &Configurer{tools: tools}
}

// Configure derives and installs a link-local address. ok is false when the
// address could not be applied.
func (c *Configurer) Configure(ctx context.Context, iface string, hw net.HardwareAddr) (net.IP, bool) {
	if err := ctx.Err(); err != nil {
		return nil, false
	}
	ip := CandidateFor(hw)
	cfg := domain.IPConfig{
		Address: ip,
		Netmask: net.IPv4Mask(255, 255, 0, 0),
	}
	if err := c.tools.SetupStaticIPv4(iface, cfg); err != nil {
		slog.Warn("auto-ip configuration failed", "iface", iface, "err", err)
		return nil, false
	}
	slog.Info("auto-ip address configured", "iface", iface, "ip", ip.String())
	return ip, true
}

// CandidateFor hashes the hardware address into the usable link-local
// range 169.254.1.0 .. 169.254.254.255.
func CandidateFor(hw net.HardwareAddr) net.IP {
	var h uint32 = 2166136261 // FNV-1a
	for _, b := range hw {
		h ^= uint32(b)
		h *= 16777619
	}
	b3 := byte(h>>8)%254 + 1 // avoid .0 and .255 subnets
	b4 := byte(h)
	return net.IPv4(169, 254, b3, b4)
}
