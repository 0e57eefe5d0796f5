package domain

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mac(s string) net.HardwareAddr {
	hw, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return hw
}

func TestAPList_Append_MergesByBSSID(t *testing.T) {
	l := NewAPList(ListDeviceScan)
	old := &AccessPoint{ESSID: "home", BSSID: mac("00:11:22:33:44:55"), Strength: 40,
		LastSeen: time.Unix(100, 0)}
	fresh := &AccessPoint{ESSID: "home", BSSID: mac("00:11:22:33:44:55"), Strength: 70,
		LastSeen: time.Unix(200, 0)}

	l.Append(old)
	l.Append(fresh)

	assert.Equal(t, 1, l.Len())
	got := l.ByESSID("home")
	require.NotNil(t, got)
	assert.Equal(t, 70, got.Strength, "newer timestamp wins on collision")
}

func TestAPList_Append_MergesByESSIDWhenNoBSSID(t *testing.T) {
	l := NewAPList(ListAllowed)
	l.Append(&AccessPoint{ESSID: "lab", Trusted: true})
	l.Append(&AccessPoint{ESSID: "lab", Key: "deadbeef01", KeyType: KeyTypeHex, Encrypted: true})

	assert.Equal(t, 1, l.Len())
	got := l.ByESSID("lab")
	require.NotNil(t, got)
	assert.True(t, got.Trusted)
	assert.Equal(t, "deadbeef01", got.Key)
}

func TestAPList_ByESSID_OnlyFindsMembers(t *testing.T) {
	l := NewAPList(ListDeviceScan)
	l.Append(&AccessPoint{ESSID: "one", BSSID: mac("02:00:00:00:00:01")})

	assert.NotNil(t, l.ByESSID("one"))
	assert.Nil(t, l.ByESSID("two"))
	assert.Nil(t, l.ByESSID(""))
}

func TestAPList_ByBSSID(t *testing.T) {
	l := NewAPList(ListDeviceScan)
	l.Append(&AccessPoint{ESSID: "one", BSSID: mac("02:00:00:00:00:01")})

	assert.NotNil(t, l.ByBSSID("02:00:00:00:00:01"))
	assert.Nil(t, l.ByBSSID("02:00:00:00:00:02"))
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	a := NewAPList(ListDeviceScan)
	b := NewAPList(ListDeviceScan)
	a.Append(&AccessPoint{ESSID: "stays", BSSID: mac("02:00:00:00:00:01")})
	a.Append(&AccessPoint{ESSID: "goes", BSSID: mac("02:00:00:00:00:02")})
	b.Append(&AccessPoint{ESSID: "stays", BSSID: mac("02:00:00:00:00:01")})
	b.Append(&AccessPoint{ESSID: "comes", BSSID: mac("02:00:00:00:00:03")})

	added, removed := Diff(a, b)
	require.Len(t, added, 1)
	require.Len(t, removed, 1)
	assert.Equal(t, "comes", added[0].ESSID)
	assert.Equal(t, "goes", removed[0].ESSID)
}

func TestDiff_CombineIsOrderInsensitive(t *testing.T) {
	a := NewAPList(ListDeviceScan)
	b := NewAPList(ListDeviceScan)
	a.Append(&AccessPoint{ESSID: "x", BSSID: mac("02:00:00:00:00:01"), LastSeen: time.Unix(1, 0)})
	b.Append(&AccessPoint{ESSID: "y", BSSID: mac("02:00:00:00:00:02"), LastSeen: time.Unix(2, 0)})

	ab := Combine(ListDeviceScan, a, b)
	ba := Combine(ListDeviceScan, b, a)

	added, removed := Diff(ab, ba)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestCopyProperties_FillsKeysAndTrust(t *testing.T) {
	visible := NewAPList(ListDeviceScan)
	allowed := NewAPList(ListAllowed)
	visible.Append(&AccessPoint{ESSID: "corp", BSSID: mac("02:00:00:00:00:01"), Encrypted: true})
	allowed.Append(&AccessPoint{ESSID: "corp", Encrypted: true, Key: "cafef00d11",
		KeyType: KeyTypeHex, Trusted: true, LastSeen: time.Unix(500, 0)})

	visible.CopyProperties(allowed)

	got := visible.ByESSID("corp")
	require.NotNil(t, got)
	assert.Equal(t, "cafef00d11", got.Key)
	assert.True(t, got.Trusted)
	assert.Equal(t, time.Unix(500, 0), got.LastSeen)
}

func TestCopyESSIDsByAddress_RecoversCloakedNames(t *testing.T) {
	visible := NewAPList(ListDeviceScan)
	previous := NewAPList(ListDeviceScan)
	visible.Append(&AccessPoint{BSSID: mac("02:00:00:00:00:09")})
	previous.Append(&AccessPoint{ESSID: "hidden-net", BSSID: mac("02:00:00:00:00:09")})

	visible.CopyESSIDsByAddress(previous)

	assert.NotNil(t, visible.ByESSID("hidden-net"))
}

func TestSnapshot_IsStableUnderMutation(t *testing.T) {
	l := NewAPList(ListDeviceScan)
	l.Append(&AccessPoint{ESSID: "a", BSSID: mac("02:00:00:00:00:01")})
	snap := l.Snapshot()
	l.Append(&AccessPoint{ESSID: "b", BSSID: mac("02:00:00:00:00:02")})

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, l.Len())
}
