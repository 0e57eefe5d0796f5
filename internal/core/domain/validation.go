package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Driver limits from the wireless extensions ABI.
const (
	ESSIDMaxSize     = 32 // IW_ESSID_MAX_SIZE
	EncodingTokenMax = 64 // IW_ENCODING_TOKEN_MAX
)

// cloakedESSIDs are sentinel names some drivers report for hidden networks.
var cloakedESSIDs = map[string]bool{
	"":         true,
	" ":        true,
	"<hidden>": true,
	"\x00":     true,
}

// NormalizeESSID maps blank and sentinel-cloaked names to "no ESSID" and
// truncates to the driver maximum.
func NormalizeESSID(essid string) string {
	essid = strings.TrimRight(essid, "\x00")
	if cloakedESSIDs[essid] {
		return ""
	}
	if len(essid) > ESSIDMaxSize {
		essid = essid[:ESSIDMaxSize]
	}
	return essid
}

// ValidateESSID rejects names the driver cannot carry.
func ValidateESSID(essid string) error {
	if essid == "" {
		return fmt.Errorf("%w: empty essid", ErrInvalidArgument)
	}
	if len(essid) > ESSIDMaxSize {
		return fmt.Errorf("%w: essid longer than %d bytes", ErrInvalidArgument, ESSIDMaxSize)
	}
	return nil
}

// Validate checks the record's structural invariants: an unencrypted AP
// carries no key material, and an AP with no ESSID must have a BSSID.
func (ap *AccessPoint) Validate() error {
	if !ap.Encrypted && ap.Key != "" {
		return fmt.Errorf("%w: key material on unencrypted network %q", ErrInvalidArgument, ap.ESSID)
	}
	if ap.ESSID == "" && !ap.HasBSSID() {
		return fmt.Errorf("%w: access point with neither essid nor bssid", ErrInvalidArgument)
	}
	return nil
}

// MaterializeWEPKey converts user key material into the raw bytes handed to
// the driver. Hex keys decode as-is, ASCII keys are used byte for byte, and
// 128-bit passphrases run through the de-facto MD5 construction (passphrase
// repeated to 64 bytes, hashed, first 13 bytes kept).
func MaterializeWEPKey(key string, typ KeyType) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	switch typ {
	case KeyTypeHex, KeyTypeUnknown:
		raw, err := hex.DecodeString(key)
		if err != nil {
			if typ == KeyTypeHex {
				return nil, fmt.Errorf("%w: bad hex key: %v", ErrInvalidArgument, err)
			}
			// Unknown type that does not parse as hex: treat as ASCII.
			raw = []byte(key)
		}
		return capKey(raw)
	case KeyTypeAscii:
		return capKey([]byte(key))
	case KeyTypePassphrase128:
		buf := make([]byte, 64)
		for i := range buf {
			buf[i] = key[i%len(key)]
		}
		sum := md5.Sum(buf)
		return sum[:13], nil
	}
	return nil, fmt.Errorf("%w: key type %d", ErrInvalidArgument, typ)
}

func capKey(raw []byte) ([]byte, error) {
	if len(raw) > EncodingTokenMax {
		return nil, fmt.Errorf("%w: key longer than %d bytes", ErrInvalidArgument, EncodingTokenMax)
	}
	return raw, nil
}
