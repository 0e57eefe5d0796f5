package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
)

func dev() *domain.Device {
	return domain.NewDevice("/dev/wlan0", "wlan0", domain.DeviceWireless, domain.DriverFullySupported)
}

func lists() (*domain.APList, *domain.APList) {
	return domain.NewAPList(domain.ListAllowed), domain.NewAPList(domain.ListInvalid)
}

func TestUpdateBest_PrefersTrustedOverUntrusted(t *testing.T) {
	allowed, invalid := lists()
	allowed.Append(&domain.AccessPoint{ESSID: "guest", LastSeen: time.Unix(900, 0)})
	allowed.Append(&domain.AccessPoint{ESSID: "corp", Trusted: true, LastSeen: time.Unix(100, 0)})

	d := dev()
	d.Visible().Append(&domain.AccessPoint{ESSID: "guest", Strength: 90})
	d.Visible().Append(&domain.AccessPoint{ESSID: "corp", Strength: 20})

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "corp", best.ESSID, "trusted wins even with a fresher untrusted match")
}

func TestUpdateBest_NewestTimestampWinsWithinTier(t *testing.T) {
	allowed, invalid := lists()
	allowed.Append(&domain.AccessPoint{ESSID: "old", LastSeen: time.Unix(100, 0)})
	allowed.Append(&domain.AccessPoint{ESSID: "new", LastSeen: time.Unix(200, 0)})

	d := dev()
	d.Visible().Append(&domain.AccessPoint{ESSID: "old"})
	d.Visible().Append(&domain.AccessPoint{ESSID: "new"})

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "new", best.ESSID)
}

func TestUpdateBest_SkipsInvalidNetworks(t *testing.T) {
	allowed, invalid := lists()
	allowed.Append(&domain.AccessPoint{ESSID: "bad", LastSeen: time.Unix(300, 0)})
	allowed.Append(&domain.AccessPoint{ESSID: "good", LastSeen: time.Unix(100, 0)})
	invalid.Append(&domain.AccessPoint{ESSID: "bad"})

	d := dev()
	d.Visible().Append(&domain.AccessPoint{ESSID: "bad"})
	d.Visible().Append(&domain.AccessPoint{ESSID: "good"})

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "good", best.ESSID)
}

func TestUpdateBest_CopiesKeyMaterialFromAllowed(t *testing.T) {
	allowed, invalid := lists()
	allowed.Append(&domain.AccessPoint{ESSID: "corp", Encrypted: true,
		Key: "cafef00d11", KeyType: domain.KeyTypeHex, Auth: domain.AuthSharedKey})

	d := dev()
	d.Visible().Append(&domain.AccessPoint{ESSID: "corp", Encrypted: true})

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "cafef00d11", best.Key)
	assert.Equal(t, domain.KeyTypeHex, best.KeyType)
	assert.Equal(t, domain.AuthSharedKey, best.Auth)
}

func TestUpdateBest_NoCandidateReturnsNil(t *testing.T) {
	allowed, invalid := lists()
	d := dev()
	d.Visible().Append(&domain.AccessPoint{ESSID: "stranger"})

	best := New(allowed, invalid).UpdateBest(d, nil)
	assert.Nil(t, best)
}

func TestFrozenSelectionSurvivesWhileVisible(t *testing.T) {
	allowed, invalid := lists()
	allowed.Append(&domain.AccessPoint{ESSID: "lab"})
	allowed.Append(&domain.AccessPoint{ESSID: "other", LastSeen: time.Unix(999, 0)})

	d := dev()
	lab := &domain.AccessPoint{ESSID: "lab"}
	d.Visible().Append(lab)
	d.Visible().Append(&domain.AccessPoint{ESSID: "other"})
	d.Freeze(lab)

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "lab", best.ESSID, "frozen selection beats a fresher candidate")
	assert.True(t, d.Frozen())
}

func TestFrozenSelectionDropsWhenAPDisappears(t *testing.T) {
	allowed, invalid := lists()
	allowed.Append(&domain.AccessPoint{ESSID: "other"})

	d := dev()
	lab := &domain.AccessPoint{ESSID: "lab"}
	d.Freeze(lab) // lab never enters the visible list

	d.Visible().Append(&domain.AccessPoint{ESSID: "other"})

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "other", best.ESSID)
	assert.False(t, d.Frozen(), "freeze cleared once the AP is gone")
}

func TestFrozenUserCreatedAPSurvivesInvisibility(t *testing.T) {
	allowed, invalid := lists()
	d := dev()
	adhoc := &domain.AccessPoint{ESSID: "mynet", Mode: domain.ModeAdHoc, UserCreated: true}
	d.Freeze(adhoc)

	best := New(allowed, invalid).UpdateBest(d, nil)
	require.NotNil(t, best)
	assert.Equal(t, "mynet", best.ESSID)
	assert.True(t, d.Frozen())
}
