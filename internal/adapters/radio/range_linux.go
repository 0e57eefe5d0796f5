//go:build linux

package radio

import (
	"unsafe"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

const (
	iwMaxBitrates      = 32
	iwMaxEncodingSizes = 8
	iwMaxTxPower       = 8
	iwMaxFrequencies   = 32
)

type iwFreq struct {
	m     int32
	e     int16
	i     uint8
	flags uint8
}

type iwQuality struct {
	qual    uint8
	level   uint8
	noise   uint8
	updated uint8
}

// iwRange mirrors struct iw_range (linux/wireless.h, WE-22). Field order and
// types must match the kernel exactly; Go's alignment rules for these plain
// scalars coincide with the C ABI.
type iwRange struct {
	throughput       uint32
	minNwid          uint32
	maxNwid          uint32
	oldNumChannels   uint16
	oldNumFrequency  uint8
	scanCapa         uint8
	eventCapa        [6]uint32
	sensitivity      int32
	maxQual          iwQuality
	avgQual          iwQuality
	numBitrates      uint8
	bitrate          [iwMaxBitrates]int32
	minRts           int32
	maxRts           int32
	minFrag          int32
	maxFrag          int32
	minPmp           int32
	maxPmp           int32
	minPmt           int32
	maxPmt           int32
	pmpFlags         uint16
	pmtFlags         uint16
	pmCapa           uint16
	encodingSize     [iwMaxEncodingSizes]uint16
	numEncodingSizes uint8
	maxEncodingToken uint8
	encodingLogin    uint8
	txpowerCapa      uint16
	numTxpower       uint8
	txpower          [iwMaxTxPower]int32
	weVersionCompile uint8
	weVersionSource  uint8
	retryCapa        uint16
	retryFlags       uint16
	rTimeFlags       uint16
	minRetry         int32
	maxRetry         int32
	minRTime         int32
	maxRTime         int32
	numChannels      uint16
	numFrequency     uint8
	freq             [iwMaxFrequencies]iwFreq
	encCapa          uint32
}

// readRange fetches the card's capability block.
func readRange(ctl *control) (ports.RadioRange, error) {
	var rng iwRange
	buf := (*[unsafe.Sizeof(rng)]byte)(unsafe.Pointer(&rng))[:]
	req := newIwreq(ctl.iface)
	req.setPoint(buf, 0)
	if err := ctl.ioctlIwreq(siocGIWRANGE, &req); err != nil {
		return ports.RadioRange{}, &domain.IoError{Op: "get range", Errno: err}
	}

	out := ports.RadioRange{MaxQuality: int(rng.maxQual.qual)}
	n := int(rng.numFrequency)
	if n > iwMaxFrequencies {
		n = iwMaxFrequencies
	}
	for i := 0; i < n; i++ {
		out.Frequencies = append(out.Frequencies, iwFreqValue(rng.freq[i].m, rng.freq[i].e))
	}
	return out, nil
}
