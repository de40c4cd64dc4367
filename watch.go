package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rubiojr/walkmap/pkg/fetch"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/location"
	"github.com/rubiojr/walkmap/pkg/logger"
	"github.com/rubiojr/walkmap/pkg/mapview"
)

const desktopID = "io.github.rubiojr.walkmap.desktop"

var errUnknownCommand = errors.New("unknown command")

// runWatch drives a map session against an in-memory surface. Commands are
// read from stdin, one per line (see watchHelp).
func runWatch(args []string, cfg config) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	baseURL := fs.String("base-url", cfg.BaseURL, "walkmap API base URL")
	source := fs.String("source", "geoclue", "position source (geoclue|ws|none)")
	wsURL := fs.String("ws-url", "", "location relay URL (default derived from -base-url)")
	width := fs.Float64("width", 800, "viewport width in pixels")
	height := fs.Float64("height", 600, "viewport height in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := fetch.NewClient(*baseURL)
	client.Kinds = cfg.Kinds
	client.Radius = cfg.Radius

	var tracker *location.Tracker
	switch *source {
	case "geoclue":
		if err := location.EnsureDesktopFile(desktopID, "Walkmap"); err != nil {
			logger.Error("desktop file: %v", err)
		}
		tracker = location.NewTracker(location.NewGeoClueSource(desktopID), location.DefaultOptions)
	case "ws":
		u := *wsURL
		if u == "" {
			u = relayURL(*baseURL)
		}
		tracker = location.NewTracker(location.NewWebSocketSource(u), location.DefaultOptions)
	case "none":
	default:
		return fmt.Errorf("unknown source %q", *source)
	}

	mcfg := mapview.DefaultConfig()
	mcfg.Fallback = cfg.Fallback
	surface := mapview.NewHeadlessSurface(*width, *height)
	session := mapview.NewSession(mcfg, surface, tracker, fetch.New(client))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	go func() {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			quit, err := runCommand(session, surface, scanner.Text(), os.Stdout)
			if err != nil {
				fmt.Fprintf(os.Stdout, "error: %v\n", err)
			}
			if quit {
				return
			}
		}
	}()
	return <-done
}

// relayURL turns http(s)://host into ws(s)://host/api/location/ws.
func relayURL(base string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/location/ws"
}

const watchHelp = `commands:
  press X Y        press the relocation handle at screen X,Y
  move X Y         move the pointer while dragging
  up X Y           release the pointer
  click KM         toggle the highlight on a route
  hover KM on|off  hover affordance on a route
  confirm          enter walk mode for the highlighted route
  exit             leave walk mode
  anchor LAT LNG   move the anchor directly
  refresh          retry retrieval if allowed
  state            print the session state
  lines            print drawn route lines
  quit`

// runCommand executes one driver line. quit is true for "quit".
func runCommand(s *mapview.Session, surface *mapview.HeadlessSurface, line string, out io.Writer) (quit bool, err error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return false, nil
	}
	cmd, args := f[0], f[1:]
	switch cmd {
	case "press", "move", "up":
		p, err := screenArgs(args)
		if err != nil {
			return false, err
		}
		switch cmd {
		case "press":
			s.PressHandle(p)
		case "move":
			surface.PointerMove(p)
		default:
			surface.PointerUp(p)
		}
	case "click", "hover":
		if len(args) < 1 {
			return false, fmt.Errorf("%s needs a route km", cmd)
		}
		km, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return false, err
		}
		if cmd == "click" {
			s.SelectRoute(km)
			break
		}
		s.HoverRoute(km, len(args) < 2 || args[1] != "off")
	case "confirm":
		s.ConfirmRoute()
	case "exit":
		s.ExitWalk()
	case "anchor":
		if len(args) != 2 {
			return false, errors.New("anchor needs LAT LNG")
		}
		ll, err := parseLatLng(args[0] + "," + args[1])
		if err != nil {
			return false, err
		}
		s.MoveAnchor(ll)
	case "refresh":
		s.Refresh()
	case "state":
		snap, ok := s.Snapshot()
		if !ok {
			return true, nil
		}
		printSnapshot(out, snap)
	case "lines":
		for _, l := range surface.Lines() {
			fmt.Fprintf(out, "%s points=%d weight=%.0f opacity=%.2f glow=%v\n",
				l.Color, l.Points, l.Style.Weight, l.Style.Opacity, l.Style.Glow)
		}
	case "help":
		fmt.Fprintln(out, watchHelp)
	case "quit":
		return true, nil
	default:
		return false, fmt.Errorf("%w %q", errUnknownCommand, cmd)
	}
	return false, nil
}

func screenArgs(args []string) (geo.ScreenPoint, error) {
	if len(args) != 2 {
		return geo.ScreenPoint{}, errors.New("want X Y")
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return geo.ScreenPoint{}, err
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return geo.ScreenPoint{}, err
	}
	return geo.ScreenPoint{X: x, Y: y}, nil
}

func printSnapshot(out io.Writer, s mapview.Snapshot) {
	if s.HasAnchor {
		fmt.Fprintf(out, "anchor %s manual=%v fallback=%v gen=%d\n",
			s.Anchor.LatLng, s.Anchor.Manual, s.Anchor.FromFallback, s.Anchor.Generation)
	} else {
		fmt.Fprintln(out, "anchor none")
	}
	if s.Position != nil {
		fmt.Fprintf(out, "position %s ±%.0fm\n", s.Position.LatLng(), s.Position.Accuracy)
	}
	fmt.Fprintf(out, "follow %v\n", s.Follow)
	fmt.Fprintf(out, "routes %d drawn %v pois %d\n", len(s.Routes), s.Drawn, len(s.POIs))
	fmt.Fprintf(out, "selection %s", s.Selection.Phase)
	if km, ok := s.Selection.Highlighted(); ok {
		fmt.Fprintf(out, " %gkm", km)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "drag %s\n", s.Drag.Phase)
	fmt.Fprintf(out, "fetch attempt=%d fetched=%v inflight=%v retry=%v exhausted=%v\n",
		s.Fetch.Attempt, s.Fetch.FetchedOnce, s.Fetch.InFlight, s.Fetch.RetryPending, s.Fetch.Exhausted)
}
