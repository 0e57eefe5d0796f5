//go:build linux

package radio

import (
	"encoding/binary"
	"net"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// parseScanEvents walks the iw_event stream returned by SIOCGIWSCAN. Each
// event is a 4-byte header (length, opcode) followed by payload. A
// SIOCGIWAP event opens a new record; the following events describe it.
//
// Pointer-typed payloads (ESSID, encode) are serialized inline on 64-bit
// kernels as length(2) + flags(2) + data, with the pointer itself omitted.
func parseScanEvents(buf []byte) []ports.ScanResult {
	var out []ports.ScanResult
	var cur *ports.ScanResult

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for len(buf) >= 4 {
		evLen := int(binary.LittleEndian.Uint16(buf[0:2]))
		cmd := binary.LittleEndian.Uint16(buf[2:4])
		if evLen < 4 || evLen > len(buf) {
			break
		}
		payload := buf[4:evLen]

		switch cmd {
		case siocGIWAP:
			flush()
			cur = &ports.ScanResult{Mode: domain.ModeInfrastructure}
			// struct sockaddr: family u16, then the address bytes.
			if len(payload) >= 8 {
				cur.BSSID = append(net.HardwareAddr(nil), payload[2:8]...)
			}
		case siocGIWESSID:
			if cur != nil {
				if essid, ok := inlinePoint(payload); ok {
					cur.ESSID = domain.NormalizeESSID(string(essid))
				}
			}
		case siocGIWMODE:
			if cur != nil && len(payload) >= 4 {
				if binary.LittleEndian.Uint32(payload[0:4]) == iwModeAdhoc {
					cur.Mode = domain.ModeAdHoc
				}
			}
		case siocGIWFREQ:
			if cur != nil && len(payload) >= 6 {
				m := int32(binary.LittleEndian.Uint32(payload[0:4]))
				e := int16(binary.LittleEndian.Uint16(payload[4:6]))
				cur.Freq = iwFreqValue(m, e)
			}
		case iwevQual:
			if cur != nil && len(payload) >= 4 {
				cur.QualityPct = int(payload[0])
			}
		case siocGIWENCODE:
			if cur != nil && len(payload) >= 4 {
				flags := binary.LittleEndian.Uint16(payload[2:4])
				cur.KeyDisabled = flags&iwEncodeDisabled != 0
			}
		}
		buf = buf[evLen:]
	}
	flush()
	return out
}

// inlinePoint extracts the data bytes of an inline iw_point payload.
func inlinePoint(payload []byte) ([]byte, bool) {
	if len(payload) < 4 {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint16(payload[0:2]))
	data := payload[4:]
	if n > len(data) {
		n = len(data)
	}
	return data[:n], true
}
