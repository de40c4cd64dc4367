package mapview

import (
	"testing"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/selection"
)

func TestHandlersSuspendRestoresExactly(t *testing.T) {
	var applied []string
	hs := NewHandlers(func(h Handler, on bool) {
		state := "off"
		if on {
			state = "on"
		}
		applied = append(applied, string(h)+"="+state)
	}, HandlerDragging, HandlerKeyboard, HandlerTouchScroll)

	restore := hs.Suspend()
	if !hs.Suspended() {
		t.Fatal("not suspended")
	}
	for _, h := range AllHandlers {
		if hs.Enabled(h) {
			t.Errorf("%s enabled while suspended", h)
		}
	}
	if len(applied) != 3 {
		t.Errorf("applied %v", applied)
	}

	restore()
	restore()
	if hs.Suspended() {
		t.Error("still suspended")
	}
	for _, h := range AllHandlers {
		want := h == HandlerDragging || h == HandlerKeyboard || h == HandlerTouchScroll
		if hs.Enabled(h) != want {
			t.Errorf("%s enabled=%v after restore", h, hs.Enabled(h))
		}
	}
	if len(applied) != 6 {
		t.Errorf("restore ran more than once: %v", applied)
	}
}

func TestRendererReusesUnchangedLines(t *testing.T) {
	s := NewHeadlessSurface(400, 300)
	sel := &selection.Machine{}
	r := NewRenderer(s, sel, func(f func()) { f() })
	at := geo.LatLng{Lat: 31.91, Lng: 131.42}
	routes := loopRoutes(at)

	r.SetRoutes(routes)
	before := s.Lines()
	if len(before) != 3 {
		t.Fatalf("%d lines", len(before))
	}

	changed := loopRoutes(at)
	changed[1].Coords = changed[1].Coords[:2]
	r.SetRoutes(changed)
	after := s.Lines()
	if len(after) != 3 {
		t.Fatalf("%d lines", len(after))
	}
	var pts int
	for _, l := range after {
		if l.Color == "#22c55e" {
			pts = l.Points
		}
	}
	if pts != 2 {
		t.Errorf("changed route not redrawn: %d points", pts)
	}
	if got := r.RouteIDs(); len(got) != 3 || got[0] != 3 || got[2] != 7 {
		t.Errorf("ids = %v", got)
	}

	r.SetRoutes(changed[:1])
	if len(s.Lines()) != 1 {
		t.Errorf("stale lines left: %d", len(s.Lines()))
	}
}

func TestRendererSkipsDuplicateLengths(t *testing.T) {
	s := NewHeadlessSurface(400, 300)
	r := NewRenderer(s, &selection.Machine{}, func(f func()) { f() })
	at := geo.LatLng{Lat: 31.91, Lng: 131.42}
	routes := loopRoutes(at)
	dup := routes[0]
	dup.Color = "#000000"

	r.SetRoutes([]geo.Route{routes[0], dup, routes[1]})
	if got := r.RouteIDs(); len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Errorf("ids = %v", got)
	}
	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("%d lines", len(lines))
	}
	for _, l := range lines {
		if l.Color == dup.Color {
			t.Error("duplicate replaced the first route")
		}
	}
}

func TestRendererPositionAccuracyFloor(t *testing.T) {
	s := NewHeadlessSurface(400, 300)
	r := NewRenderer(s, &selection.Machine{}, func(f func()) { f() })

	r.SetPosition(geo.Position{Lat: 31.9, Lng: 131.4, Accuracy: 3})
	if radii := s.CircleRadii(); len(radii) != 1 || radii[0] != AccuracyFloor {
		t.Errorf("radii = %v", radii)
	}
	r.SetPosition(geo.Position{Lat: 31.91, Lng: 131.4, Accuracy: 80})
	if radii := s.CircleRadii(); len(radii) != 1 || radii[0] != 80 {
		t.Errorf("radii = %v", radii)
	}

	r.SetPOIs([]geo.POI{
		{Name: "c", Category: geo.CategoryCafe, Lat: 31.9, Lon: 131.4},
		{Name: "s", Category: geo.CategorySight, Lat: 31.9, Lon: 131.41},
		{Name: "o", Category: "restaurant", Lat: 31.9, Lon: 131.42},
	})
	icons := map[string]int{}
	for _, m := range s.Markers() {
		icons[m.Icon.Name]++
	}
	if icons[IconCafe.Name] != 1 || icons[IconSight.Name] != 1 || icons[IconPOI.Name] != 1 || icons[IconPosition.Name] != 1 {
		t.Errorf("icons = %v", icons)
	}

	r.Clear()
	if len(s.Markers()) != 0 || len(s.CircleRadii()) != 0 {
		t.Error("clear left drawables")
	}
}
