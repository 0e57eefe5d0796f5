package domain

import (
	"net"
	"time"
)

// WirelessMode is the radio topology of a network or interface.
type WirelessMode int

const (
	ModeUnknown WirelessMode = iota
	ModeInfrastructure
	ModeAdHoc
)

func (m WirelessMode) String() string {
	switch m {
	case ModeInfrastructure:
		return "infrastructure"
	case ModeAdHoc:
		return "adhoc"
	}
	return "unknown"
}

// AuthMethod is the 802.11 authentication algorithm in use for an AP.
type AuthMethod int

const (
	AuthUnknown AuthMethod = iota
	AuthNone
	AuthOpenSystem
	AuthSharedKey
)

func (a AuthMethod) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthOpenSystem:
		return "open-system"
	case AuthSharedKey:
		return "shared-key"
	}
	return "unknown"
}

// KeyType describes how user-supplied WEP key material is encoded.
type KeyType int

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeHex
	KeyTypeAscii
	KeyTypePassphrase128
)

// AccessPoint is one visible or administrator-known wireless network.
// Records are produced by the scan reconciler or by a directed ESSID probe
// and live in exactly one APList at a time.
type AccessPoint struct {
	ESSID     string
	BSSID     net.HardwareAddr
	Mode      WirelessMode
	Freq      float64
	Strength  int // 0-100
	Encrypted bool
	Key       string
	KeyType   KeyType
	Auth      AuthMethod

	Invalid     bool
	Artificial  bool
	UserCreated bool
	Trusted     bool

	LastSeen time.Time
}

// HasBSSID reports whether the AP carries a non-zero base-station address.
func (ap *AccessPoint) HasBSSID() bool {
	if len(ap.BSSID) != 6 {
		return false
	}
	for _, b := range ap.BSSID {
		if b != 0 {
			return true
		}
	}
	return false
}

// Matches reports whether other names the same network: by BSSID when both
// sides have one, otherwise by ESSID.
func (ap *AccessPoint) Matches(other *AccessPoint) bool {
	if other == nil {
		return false
	}
	if ap.HasBSSID() && other.HasBSSID() {
		return ap.BSSID.String() == other.BSSID.String()
	}
	return ap.ESSID != "" && ap.ESSID == other.ESSID
}

// Clone returns an independent copy of the record.
func (ap *AccessPoint) Clone() *AccessPoint {
	dup := *ap
	if ap.BSSID != nil {
		dup.BSSID = append(net.HardwareAddr(nil), ap.BSSID...)
	}
	return &dup
}

// absorb folds src into ap preferring the newer record's observations while
// keeping any key material and flags already learned.
func (ap *AccessPoint) absorb(src *AccessPoint) {
	if src.LastSeen.After(ap.LastSeen) {
		ap.Strength = src.Strength
		ap.Freq = src.Freq
		ap.LastSeen = src.LastSeen
		if src.Mode != ModeUnknown {
			ap.Mode = src.Mode
		}
	}
	if src.ESSID != "" && ap.ESSID == "" {
		ap.ESSID = src.ESSID
	}
	if src.HasBSSID() && !ap.HasBSSID() {
		ap.BSSID = append(net.HardwareAddr(nil), src.BSSID...)
	}
	ap.Encrypted = ap.Encrypted || src.Encrypted
	if src.Key != "" {
		ap.Key = src.Key
		ap.KeyType = src.KeyType
	}
	if src.Auth != AuthUnknown {
		ap.Auth = src.Auth
	}
	ap.Trusted = ap.Trusted || src.Trusted
	ap.UserCreated = ap.UserCreated || src.UserCreated
	ap.Artificial = ap.Artificial || src.Artificial
}

// APView is the wire representation of an AccessPoint for the HTTP and
// websocket surfaces.
type APView struct {
	ESSID       string    `json:"essid"`
	BSSID       string    `json:"bssid,omitempty"`
	Mode        string    `json:"mode"`
	Freq        float64   `json:"freq"`
	Strength    int       `json:"strength"`
	Encrypted   bool      `json:"encrypted"`
	Trusted     bool      `json:"trusted,omitempty"`
	UserCreated bool      `json:"user_created,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// View converts the record to its wire form. Key material never leaves the
// process.
func (ap *AccessPoint) View() APView {
	v := APView{
		ESSID:       ap.ESSID,
		Mode:        ap.Mode.String(),
		Freq:        ap.Freq,
		Strength:    ap.Strength,
		Encrypted:   ap.Encrypted,
		Trusted:     ap.Trusted,
		UserCreated: ap.UserCreated,
		LastSeen:    ap.LastSeen,
	}
	if ap.HasBSSID() {
		v.BSSID = ap.BSSID.String()
	}
	return v
}
