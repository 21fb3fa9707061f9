// Package compositor identifies the running Wayland compositor and, for
// the fully supported ones, queries keyboard layout facts over their IPC
// sockets.
//
// Detection is a pure classification over environment signals, computed
// once at startup and cached as read-only process state. It never fails:
// ambiguity yields Unknown with the Basic tier.
package compositor

import (
	"os"
	"strings"
	"sync"
)

// Identity is the detected compositor.
type Identity int

// Known compositors.
const (
	Unknown Identity = iota
	Hyprland
	Sway
	Niri
	River
	Dwl
	Labwc
	Wayfire
)

// String returns the compositor's display name.
func (id Identity) String() string {
	switch id {
	case Hyprland:
		return "Hyprland"
	case Sway:
		return "Sway"
	case Niri:
		return "Niri"
	case River:
		return "River"
	case Dwl:
		return "dwl"
	case Labwc:
		return "Labwc"
	case Wayfire:
		return "Wayfire"
	default:
		return "Unknown"
	}
}

// Tier classifies how much compositor-specific integration is available.
type Tier int

const (
	// TierBasic offers detection only.
	TierBasic Tier = iota
	// TierFull adds layout queries and events over compositor IPC.
	TierFull
)

// String returns the tier name.
func (t Tier) String() string {
	if t == TierFull {
		return "full"
	}
	return "basic"
}

// Tier returns the support tier for the compositor.
func (id Identity) Tier() Tier {
	switch id {
	case Hyprland, Sway, Niri:
		return TierFull
	default:
		return TierBasic
	}
}

var (
	detectOnce sync.Once
	detected   Identity
)

// Current returns the compositor detected at first call, cached for the
// process lifetime.
func Current() Identity {
	detectOnce.Do(func() {
		detected = Detect()
	})
	return detected
}

// Detect classifies the running compositor from the environment.
func Detect() Identity {
	return detectFrom(os.LookupEnv)
}

// detectFrom runs detection against an injectable environment lookup.
// Socket variables are checked before the softer XDG_CURRENT_DESKTOP
// match, since a nested session can leak the latter.
func detectFrom(lookup func(string) (string, bool)) Identity {
	if _, ok := lookup("HYPRLAND_INSTANCE_SIGNATURE"); ok {
		return Hyprland
	}
	if _, ok := lookup("SWAYSOCK"); ok {
		return Sway
	}
	if _, ok := lookup("NIRI_SOCKET"); ok {
		return Niri
	}
	if _, ok := lookup("NIRI_SOCKET_PATH"); ok {
		return Niri
	}
	if _, ok := lookup("WAYFIRE_SOCKET"); ok {
		return Wayfire
	}

	if desktop, ok := lookup("XDG_CURRENT_DESKTOP"); ok {
		lower := strings.ToLower(desktop)
		switch {
		case strings.Contains(lower, "river"):
			return River
		case strings.Contains(lower, "dwl"):
			return Dwl
		case strings.Contains(lower, "labwc"):
			return Labwc
		case strings.Contains(lower, "hyprland"):
			return Hyprland
		case strings.Contains(lower, "sway"):
			return Sway
		case strings.Contains(lower, "niri"):
			return Niri
		}
	}

	return Unknown
}
