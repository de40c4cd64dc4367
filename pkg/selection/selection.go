// Package selection tracks which walking route is highlighted or confirmed
// for walk mode, and derives the line styles that follow from it.
package selection

import (
	"github.com/rubiojr/walkmap/pkg/geo"
)

// Phase of the selection machine.
type Phase int

const (
	None Phase = iota
	Selected
	Confirmed
)

func (p Phase) String() string {
	switch p {
	case Selected:
		return "selected"
	case Confirmed:
		return "confirmed"
	}
	return "none"
}

// State is the selection record. Km is meaningful unless Phase is None.
type State struct {
	Phase Phase
	Km    float64
}

// Highlighted returns the highlighted route id, if any.
func (s State) Highlighted() (km float64, ok bool) {
	if s.Phase == None {
		return 0, false
	}
	return s.Km, true
}

// Machine holds the selection. Not safe for concurrent use.
type Machine struct {
	st State
}

// State returns the current record.
func (m *Machine) State() State { return m.st }

// Click toggles km: selects it, deselects it if already selected, or moves
// the highlight to it. Clicks are ignored in walk mode.
func (m *Machine) Click(km float64) State {
	switch m.st.Phase {
	case None:
		m.st = State{Phase: Selected, Km: km}
	case Selected:
		if m.st.Km == km {
			m.st = State{}
		} else {
			m.st = State{Phase: Selected, Km: km}
		}
	}
	return m.st
}

// Confirm enters walk mode for the selected route.
func (m *Machine) Confirm() bool {
	if m.st.Phase != Selected {
		return false
	}
	m.st.Phase = Confirmed
	return true
}

// Exit leaves walk mode and clears the highlight.
func (m *Machine) Exit() bool {
	if m.st.Phase != Confirmed {
		return false
	}
	m.st = State{}
	return true
}

// Clear drops any selection (used when the route set is replaced).
func (m *Machine) Clear() {
	m.st = State{}
}

// Retain clears the selection if km no longer names one of routes.
func (m *Machine) Retain(routes []geo.Route) {
	km, ok := m.st.Highlighted()
	if !ok {
		return
	}
	for _, r := range routes {
		if r.Km == km {
			return
		}
	}
	m.st = State{}
}

// Visible returns the routes to draw: only the confirmed one in walk mode.
func (m *Machine) Visible(routes []geo.Route) []geo.Route {
	if m.st.Phase != Confirmed {
		return routes
	}
	for _, r := range routes {
		if r.Km == m.st.Km {
			return []geo.Route{r}
		}
	}
	return nil
}

// Style is the stroke applied to a route line.
type Style struct {
	Color   string
	Weight  float64
	Opacity float64
	Glow    bool
	// Front raises the line above its siblings.
	Front bool
}

// Stroke presets.
const (
	NormalWeight   = 5
	NormalOpacity  = 0.9
	SelectedWeight = 8
	DimmedWeight   = 3
	DimmedOpacity  = 0.35
	HoverBoost     = 2
)

// StyleFor returns the selection-determined style of route r.
func (m *Machine) StyleFor(r geo.Route) Style {
	km, ok := m.st.Highlighted()
	switch {
	case !ok:
		return Style{Color: r.Color, Weight: NormalWeight, Opacity: NormalOpacity}
	case km == r.Km:
		return Style{Color: r.Color, Weight: SelectedWeight, Opacity: 1, Glow: true, Front: true}
	default:
		return Style{Color: r.Color, Weight: DimmedWeight, Opacity: DimmedOpacity}
	}
}

// HoverStyle is StyleFor with a heavier stroke; opacity and glow are untouched.
func (m *Machine) HoverStyle(r geo.Route) Style {
	s := m.StyleFor(r)
	s.Weight += HoverBoost
	return s
}
