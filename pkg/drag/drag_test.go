package drag

import (
	"testing"

	"github.com/rubiojr/walkmap/pkg/geo"
)

// fakeSurface is a 400x300 map with a linear camera transform.
type fakeSurface struct {
	suspended int
	restored  int
	captured  PointerHandler
	releases  int
	ghost     *geo.ScreenPoint
}

func (s *fakeSurface) ScreenBounds() geo.Rect {
	return geo.Rect{Max: geo.ScreenPoint{X: 400, Y: 300}}
}

func (s *fakeSurface) ContainerPointToLatLng(p geo.ScreenPoint) geo.LatLng {
	return geo.LatLng{Lat: 32 - p.Y*0.001, Lng: 131 + p.X*0.001}
}

func (s *fakeSurface) SuspendInteractions() func() {
	s.suspended++
	return func() { s.restored++ }
}

func (s *fakeSurface) CapturePointer(h PointerHandler) func() {
	s.captured = h
	return func() {
		s.captured = nil
		s.releases++
	}
}

func (s *fakeSurface) ShowGhost(p geo.ScreenPoint) { s.ghost = &p }
func (s *fakeSurface) HideGhost()                  { s.ghost = nil }

func TestDragDropInsideBounds(t *testing.T) {
	s := &fakeSurface{}
	var drops []geo.LatLng
	c := New(s, func(ll geo.LatLng) { drops = append(drops, ll) })

	if !c.Press(geo.ScreenPoint{X: 10, Y: 10}) {
		t.Fatal("press ignored")
	}
	if c.State().Phase != Dragging || !c.Capturing() || s.captured == nil {
		t.Fatalf("after press: %+v capturing=%v", c.State(), c.Capturing())
	}
	if s.suspended != 1 || s.restored != 0 {
		t.Fatalf("suspend/restore = %d/%d", s.suspended, s.restored)
	}

	// events arrive through the global capture
	s.captured.PointerMove(geo.ScreenPoint{X: 30, Y: 40})
	s.captured.PointerMove(geo.ScreenPoint{X: 50, Y: 80})
	if s.ghost == nil || *s.ghost != (geo.ScreenPoint{X: 50, Y: 80}) {
		t.Errorf("ghost = %v", s.ghost)
	}
	if p := c.State().Pointer; p == nil || *p != (geo.ScreenPoint{X: 50, Y: 80}) {
		t.Errorf("pointer = %v", p)
	}
	s.captured.PointerUp(geo.ScreenPoint{X: 50, Y: 80})

	want := s.ContainerPointToLatLng(geo.ScreenPoint{X: 50, Y: 80})
	if len(drops) != 1 || drops[0] != want {
		t.Fatalf("drops = %v, want [%v]", drops, want)
	}
	assertIdle(t, c, s)
}

func TestDragReleaseOutsideBounds(t *testing.T) {
	tests := []geo.ScreenPoint{
		{X: -1, Y: 10},
		{X: 401, Y: 10},
		{X: 10, Y: 300.5},
		{X: 500, Y: 900},
	}
	for _, p := range tests {
		s := &fakeSurface{}
		drops := 0
		c := New(s, func(geo.LatLng) { drops++ })
		c.Press(geo.ScreenPoint{X: 10, Y: 10})
		c.Move(p)
		if _, dropped := c.Release(p); dropped {
			t.Errorf("release at %v reported a drop", p)
		}
		if drops != 0 {
			t.Errorf("release at %v: %d drop callbacks", p, drops)
		}
		assertIdle(t, c, s)
	}
}

func TestDragIgnoresOutOfPhaseEvents(t *testing.T) {
	s := &fakeSurface{}
	drops := 0
	c := New(s, func(geo.LatLng) { drops++ })

	if c.Move(geo.ScreenPoint{X: 1, Y: 1}) {
		t.Error("move accepted while idle")
	}
	if _, dropped := c.Release(geo.ScreenPoint{X: 1, Y: 1}); dropped {
		t.Error("release accepted while idle")
	}
	c.Press(geo.ScreenPoint{X: 1, Y: 1})
	if c.Press(geo.ScreenPoint{X: 2, Y: 2}) {
		t.Error("second press accepted while dragging")
	}
	if s.suspended != 1 {
		t.Errorf("handlers suspended %d times", s.suspended)
	}
	c.Release(geo.ScreenPoint{X: 2, Y: 2})
	if drops != 1 {
		t.Errorf("drops = %d", drops)
	}
}

func TestDragCancelRestores(t *testing.T) {
	s := &fakeSurface{}
	c := New(s, func(geo.LatLng) { t.Error("cancel dropped") })
	c.Press(geo.ScreenPoint{X: 5, Y: 5})
	c.Cancel()
	assertIdle(t, c, s)
	c.Cancel()
	if s.restored != 1 || s.releases != 1 {
		t.Errorf("double cancel released twice: %d/%d", s.restored, s.releases)
	}
}

func assertIdle(t *testing.T, c *Controller, s *fakeSurface) {
	t.Helper()
	if st := c.State(); st.Phase != Idle || st.Pointer != nil {
		t.Errorf("state = %+v, want idle", st)
	}
	if c.Capturing() || s.captured != nil {
		t.Error("pointer capture leaked")
	}
	if s.restored != s.suspended {
		t.Errorf("handlers restored %d of %d", s.restored, s.suspended)
	}
	if s.ghost != nil {
		t.Error("ghost still shown")
	}
}
