package compositor

// Layouts describes the keyboard layouts a compositor reports.
type Layouts struct {
	// Names lists the configured layout names.
	Names []string

	// Current indexes the active layout in Names.
	Current int
}

// CurrentName returns the active layout name, or "" when nothing is
// configured.
func (l Layouts) CurrentName() string {
	if l.Current < 0 || l.Current >= len(l.Names) {
		return ""
	}
	return l.Names[l.Current]
}

// Client queries keyboard layout facts from a compositor's IPC socket.
type Client interface {
	// Layouts returns the configured keyboard layouts.
	Layouts() (Layouts, error)
}

// NewClient returns a layout client for the given compositor, or nil when
// the compositor has no queryable IPC or its socket is not reachable.
// A nil client is an answer, not an error: Basic-tier consumers simply
// skip layout hints.
func NewClient(id Identity) Client {
	switch id {
	case Hyprland:
		return newHyprlandClient()
	case Sway:
		return newSwayClient()
	case Niri:
		return newNiriClient()
	default:
		return nil
	}
}
