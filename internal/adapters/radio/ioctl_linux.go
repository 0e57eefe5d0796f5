//go:build linux

package radio

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

// Wireless-extension ioctl opcodes (linux/wireless.h).
const (
	siocGIWNAME   = 0x8B01
	siocSIWFREQ   = 0x8B04
	siocGIWFREQ   = 0x8B05
	siocSIWMODE   = 0x8B06
	siocGIWMODE   = 0x8B07
	siocGIWRANGE  = 0x8B0B
	siocGIWSTATS  = 0x8B0F
	siocSIWAP     = 0x8B14
	siocGIWAP     = 0x8B15
	siocSIWSCAN   = 0x8B18
	siocGIWSCAN   = 0x8B19
	siocSIWESSID  = 0x8B1A
	siocGIWESSID  = 0x8B1B
	siocSIWRATE   = 0x8B20
	siocGIWRATE   = 0x8B21
	siocSIWENCODE = 0x8B2A
	siocGIWENCODE = 0x8B2B

	iwevQual = 0x8C01

	iwModeAdhoc = 1
	iwModeInfra = 2

	iwEncodeIndex      = 0x00FF
	iwEncodeRestricted = 0x4000
	iwEncodeOpen       = 0x2000
	iwEncodeDisabled   = 0x8000
	iwEncodeNoKey      = 0x0800

	iwQualQualInvalid  = 0x10
	iwQualLevelInvalid = 0x20
	iwQualNoiseInvalid = 0x40

	iwScanMaxData = 4096
)

// iwreq mirrors struct iwreq: interface name plus a 16-byte data union.
type iwreq struct {
	name [unix.IFNAMSIZ]byte
	u    [16]byte
}

func newIwreq(iface string) iwreq {
	var req iwreq
	copy(req.name[:], iface)
	return req
}

// pointer-style union member (struct iw_point).
func (r *iwreq) setPoint(buf []byte, flags uint16) {
	var p unsafe.Pointer
	if len(buf) > 0 {
		p = unsafe.Pointer(&buf[0])
	}
	*(*unsafe.Pointer)(unsafe.Pointer(&r.u[0])) = p
	*(*uint16)(unsafe.Pointer(&r.u[8])) = uint16(len(buf))
	*(*uint16)(unsafe.Pointer(&r.u[10])) = flags
}

func (r *iwreq) pointLen() uint16   { return *(*uint16)(unsafe.Pointer(&r.u[8])) }
func (r *iwreq) pointFlags() uint16 { return *(*uint16)(unsafe.Pointer(&r.u[10])) }

// scalar union member (struct iw_param / plain u32 mode).
func (r *iwreq) setUint32(v uint32)       { *(*uint32)(unsafe.Pointer(&r.u[0])) = v }
func (r *iwreq) uint32() uint32           { return *(*uint32)(unsafe.Pointer(&r.u[0])) }
func (r *iwreq) setParam(v int32, fixed bool) {
	*(*int32)(unsafe.Pointer(&r.u[0])) = v
	if fixed {
		r.u[4] = 1
	} else {
		r.u[4] = 0
	}
	r.u[5] = 0 // disabled
}
func (r *iwreq) param() int32 { return *(*int32)(unsafe.Pointer(&r.u[0])) }
func (r *iwreq) paramDisabled() bool { return r.u[5] != 0 }

// iw_freq union member: mantissa/exponent pair.
func (r *iwreq) setFreq(m int32, e int16) {
	*(*int32)(unsafe.Pointer(&r.u[0])) = m
	*(*int16)(unsafe.Pointer(&r.u[4])) = e
	r.u[6] = 0
	r.u[7] = 0
}

func (r *iwreq) freq() (int32, int16) {
	return *(*int32)(unsafe.Pointer(&r.u[0])), *(*int16)(unsafe.Pointer(&r.u[4]))
}

// sockaddr union member (associated BSSID).
func (r *iwreq) hwAddr() []byte {
	// struct sockaddr: family u16, then sa_data.
	return r.u[2:8]
}

// iwFreqValue converts an (m, e) pair to MHz.
func iwFreqValue(m int32, e int16) float64 {
	v := float64(m)
	for i := int16(0); i < e; i++ {
		v *= 10
	}
	// Values below 1000 are channel numbers, not frequencies; callers
	// deal with that. Frequencies come in Hz, scale to MHz.
	if v > 1e6 {
		v /= 1e6
	}
	return v
}

// control owns the ioctl socket for one interface.
type control struct {
	iface string
	fd    int
}

func openControl(iface string) (*control, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &domain.IoError{Op: "socket", Errno: err}
	}
	return &control{iface: iface, fd: fd}, nil
}

func (c *control) close() {
	unix.Close(c.fd)
}

func (c *control) ioctlIwreq(op uintptr, req *iwreq) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), op, uintptr(unsafe.Pointer(req)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (c *control) ioctlIfreq(op uintptr, req unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), op, uintptr(req))
	if errno != 0 {
		return errno
	}
	return nil
}
