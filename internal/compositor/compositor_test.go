package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDetectFromSocketVariables(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want Identity
	}{
		{"hyprland", map[string]string{"HYPRLAND_INSTANCE_SIGNATURE": "abc123"}, Hyprland},
		{"sway", map[string]string{"SWAYSOCK": "/run/user/1000/sway-ipc.sock"}, Sway},
		{"niri", map[string]string{"NIRI_SOCKET": "/run/user/1000/niri.sock"}, Niri},
		{"niri alt var", map[string]string{"NIRI_SOCKET_PATH": "/run/user/1000/niri.sock"}, Niri},
		{"wayfire", map[string]string{"WAYFIRE_SOCKET": "/run/user/1000/wayfire.sock"}, Wayfire},
		{"empty env", map[string]string{}, Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, detectFrom(envLookup(tc.env)))
		})
	}
}

func TestDetectFromDesktopFallback(t *testing.T) {
	cases := []struct {
		desktop string
		want    Identity
	}{
		{"river", River},
		{"dwl", Dwl},
		{"labwc:wlroots", Labwc},
		{"Hyprland", Hyprland},
		{"sway", Sway},
		{"niri", Niri},
		{"GNOME", Unknown},
		{"KDE", Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.desktop, func(t *testing.T) {
			env := map[string]string{"XDG_CURRENT_DESKTOP": tc.desktop}
			assert.Equal(t, tc.want, detectFrom(envLookup(env)))
		})
	}
}

func TestDetectSocketBeatsDesktop(t *testing.T) {
	// A nested session can carry a stale XDG_CURRENT_DESKTOP; the socket
	// variable identifies the compositor actually serving this client.
	env := map[string]string{
		"HYPRLAND_INSTANCE_SIGNATURE": "abc123",
		"XDG_CURRENT_DESKTOP":         "sway",
	}
	assert.Equal(t, Hyprland, detectFrom(envLookup(env)))
}

func TestTiers(t *testing.T) {
	assert.Equal(t, TierFull, Hyprland.Tier())
	assert.Equal(t, TierFull, Sway.Tier())
	assert.Equal(t, TierFull, Niri.Tier())
	assert.Equal(t, TierBasic, River.Tier())
	assert.Equal(t, TierBasic, Dwl.Tier())
	assert.Equal(t, TierBasic, Labwc.Tier())
	assert.Equal(t, TierBasic, Wayfire.Tier())
	assert.Equal(t, TierBasic, Unknown.Tier())
}

func TestIdentityStrings(t *testing.T) {
	assert.Equal(t, "Hyprland", Hyprland.String())
	assert.Equal(t, "dwl", Dwl.String())
	assert.Equal(t, "Unknown", Unknown.String())
	assert.Equal(t, "full", TierFull.String())
	assert.Equal(t, "basic", TierBasic.String())
}

func TestNewClientForBasicTier(t *testing.T) {
	assert.Nil(t, NewClient(River))
	assert.Nil(t, NewClient(Unknown))
}

func TestLayoutsCurrentName(t *testing.T) {
	l := Layouts{Names: []string{"English (US)", "German"}, Current: 1}
	assert.Equal(t, "German", l.CurrentName())

	assert.Equal(t, "", Layouts{}.CurrentName())
	assert.Equal(t, "", Layouts{Names: []string{"English (US)"}, Current: 3}.CurrentName())
}
