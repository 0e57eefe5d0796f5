//go:build linux

package radio

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

const (
	siocGMIIPhy = 0x8947 // new-style MII, returns the PHY id
	siocGMIIReg = 0x8948

	siocDevPrivate    = 0x89F0 // legacy driver-private MII entry points
	siocDevPrivateReg = 0x89F1

	miiBMSR = 1 // basic-mode status register
)

// ifreqMii mirrors struct ifreq with struct mii_ioctl_data in the union.
type ifreqMii struct {
	name   [unix.IFNAMSIZ]byte
	phyID  uint16
	regNum uint16
	valIn  uint16
	valOut uint16
	_      [16]byte
}

// miiLink probes the wired link beat. The new MII opcode is tried first,
// then the legacy driver-private fallback. The status register is read
// twice: the first read returns sticky bits latched since the last probe.
func miiLink(ctl *control) (bool, error) {
	var req ifreqMii
	copy(req.name[:], ctl.iface)

	getPhy := uintptr(siocGMIIPhy)
	getReg := uintptr(siocGMIIReg)
	if err := ctl.ioctlIfreq(getPhy, unsafe.Pointer(&req)); err != nil {
		getPhy = siocDevPrivate
		getReg = siocDevPrivateReg
		if err := ctl.ioctlIfreq(getPhy, unsafe.Pointer(&req)); err != nil {
			return false, &domain.IoError{Op: "mii phy probe", Errno: err}
		}
	}

	req.regNum = miiBMSR
	for i := 0; i < 2; i++ {
		if err := ctl.ioctlIfreq(getReg, unsafe.Pointer(&req)); err != nil {
			return false, &domain.IoError{Op: "mii status read", Errno: err}
		}
	}
	return linkBeatFromStatus(req.valOut), nil
}
