package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rubiojr/walkmap/pkg/geo"
)

/*
GeoClue (geoclue2) provider.

GeoClue requires a DesktopId matching a .desktop file in the XDG data dirs
that carries X-Geoclue-2-Client=true; without it Start either fails with
org.freedesktop.DBus.Error.AccessDenied or silently never produces fixes.
EnsureDesktopFile writes a minimal one when missing.

The provider reconnects on bus errors (a few quick retries, then a slow
cadence) so the Tracker above it stays push-only.
*/

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"
)

// GeoClue accuracy levels (GClueAccuracyLevel).
const (
	accuracyStreet = uint32(6)
	accuracyExact  = uint32(8)
)

// GeoClueSource reads fixes from the system GeoClue2 service.
type GeoClueSource struct {
	DesktopID string
	// DistanceThreshold is the minimum movement in meters between updates.
	DistanceThreshold uint32
	// RetryDelay is the base delay between reconnect attempts.
	RetryDelay time.Duration
}

// NewGeoClueSource returns a provider using desktopID for authorization.
func NewGeoClueSource(desktopID string) *GeoClueSource {
	return &GeoClueSource{
		DesktopID:         desktopID,
		DistanceThreshold: 5,
		RetryDelay:        2 * time.Second,
	}
}

// Watch keeps a GeoClue client alive until ctx is cancelled.
func (s *GeoClueSource) Watch(ctx context.Context, opts Options, emit func(geo.Position)) error {
	const maxQuickRetries = 5

	acc := accuracyStreet
	if opts.HighAccuracy {
		acc = accuracyExact
	}
	var timeThreshold uint32
	if opts.MaximumAge > 0 {
		timeThreshold = uint32(opts.MaximumAge / time.Second)
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := func() error {
			cl, err := newGeoClueClient(s.DesktopID, acc, s.DistanceThreshold, timeThreshold)
			if err != nil {
				return err
			}
			defer cl.close()
			if err := cl.start(); err != nil {
				return err
			}
			attempt = 0
			cl.emitCurrent(emit)
			return cl.runSignalLoop(ctx, emit)
		}()
		if err == nil {
			return nil
		}
		attempt++
		delay := 30 * time.Second
		if attempt <= maxQuickRetries {
			delay = s.RetryDelay * time.Duration(attempt)
		}
		log.Error("geoclue: %v (attempt=%d, retry in %s)", err, attempt, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// EnsureDesktopFile writes a minimal desktop entry authorizing desktopID
// with GeoClue. An existing file is left alone.
func EnsureDesktopFile(desktopID, appName string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	appsDir := filepath.Join(home, ".local", "share", "applications")
	if err := os.MkdirAll(appsDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(appsDir, desktopID)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	content := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Comment=Walking route map (GeoClue client)
Exec=walkmap
Terminal=false
Categories=Utility;
X-Geoclue-2-Client=true
X-Geoclue-2-Access-Fine=true
`, appName)
	return os.WriteFile(dest, []byte(content), 0o644)
}

type geoClient struct {
	path dbus.ObjectPath
	bus  *dbus.Conn
}

func newGeoClueClient(desktopID string, acc, dist, sec uint32) (*geoClient, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	manager := bus.Object(geoService, managerPath)

	var clientPath dbus.ObjectPath
	if call := manager.Call(managerIface+".CreateClient", 0); call.Err != nil {
		bus.Close()
		return nil, call.Err
	} else if err := call.Store(&clientPath); err != nil {
		bus.Close()
		return nil, err
	}
	clientObj := bus.Object(geoService, clientPath)

	setProp := func(name string, val interface{}) error {
		return clientObj.Call(propsIface+".Set", 0, clientIface, name, dbus.MakeVariant(val)).Err
	}
	if err := setProp("DesktopId", desktopID); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set DesktopId: %w", err)
	}
	if err := setProp("RequestedAccuracyLevel", acc); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set accuracy: %w", err)
	}
	_ = setProp("DistanceThreshold", dist)
	_ = setProp("TimeThreshold", sec)

	return &geoClient{path: clientPath, bus: bus}, nil
}

func (c *geoClient) start() error {
	return c.bus.Object(geoService, c.path).Call(clientIface+".Start", 0).Err
}

func (c *geoClient) close() {
	_ = c.bus.Object(geoService, c.path).Call(clientIface+".Stop", 0)
	c.bus.Close()
}

func (c *geoClient) emitCurrent(emit func(geo.Position)) {
	var variant dbus.Variant
	call := c.bus.Object(geoService, c.path).Call(propsIface+".Get", 0, clientIface, "Location")
	if call.Err != nil || call.Store(&variant) != nil {
		return
	}
	if lp, ok := variant.Value().(dbus.ObjectPath); ok && lp != "/" && lp != "" {
		if p, ok := c.readLocation(lp); ok {
			emit(p)
		}
	}
}

func (c *geoClient) runSignalLoop(ctx context.Context, emit func(geo.Position)) error {
	if err := c.bus.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchObjectPath(c.path),
	); err != nil {
		return err
	}
	sigCh := make(chan *dbus.Signal, 10)
	c.bus.Signal(sigCh)
	defer c.bus.RemoveSignal(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-sigCh:
			if !ok || sig == nil {
				return errors.New("dbus signal channel closed")
			}
			if sig.Name != propsIface+".PropertiesChanged" || sig.Path != c.path || len(sig.Body) < 2 {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			v, ok := changed["Location"]
			if !ok {
				continue
			}
			if lp, ok := v.Value().(dbus.ObjectPath); ok && lp != "" && lp != "/" {
				if p, ok := c.readLocation(lp); ok {
					emit(p)
				}
			}
		}
	}
}

// readLocation loads a Location object. The Timestamp property is a
// (seconds, microseconds) pair.
func (c *geoClient) readLocation(locPath dbus.ObjectPath) (geo.Position, bool) {
	var props map[string]dbus.Variant
	call := c.bus.Object(geoService, locPath).Call(propsIface+".GetAll", 0, locationIface)
	if call.Err != nil || call.Store(&props) != nil {
		return geo.Position{}, false
	}
	getF64 := func(key string) float64 {
		if v, ok := props[key]; ok {
			if f, ok := v.Value().(float64); ok {
				return f
			}
		}
		return 0
	}

	p := geo.Position{
		Lat:      getF64("Latitude"),
		Lng:      getF64("Longitude"),
		Accuracy: getF64("Accuracy"),
	}
	if v, ok := props["Timestamp"]; ok {
		var ts struct {
			Sec  uint64
			Usec uint64
		}
		if err := dbus.Store([]interface{}{v.Value()}, &ts); err == nil && ts.Sec > 0 {
			p.Timestamp = time.Unix(int64(ts.Sec), int64(ts.Usec)*int64(time.Microsecond)).UTC()
		}
	}
	return p, p.Valid()
}
