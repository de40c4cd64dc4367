package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/location"
	"github.com/rubiojr/walkmap/pkg/logger"
)

const usage = `usage: walkmap [-debug] [-data-dir DIR] <command> [flags]

commands:
  serve        run the walk routes / POI / location API (default)
  import-pois  fill the POI database from Nominatim searches
  watch        run a headless map session driven from stdin`

func main() {
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	dataDirFlag := flag.String("data-dir", "", "custom data directory (overrides XDG_DATA_HOME)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	loadEnv()
	dataDir := resolveDataDir(*dataDirFlag)
	if err := ensureDir(dataDir); err != nil {
		logger.Error("Failed to create data dir %s: %v", dataDir, err)
	}
	cfg := configFromEnv(dataDir)
	logger.SetDebug(*debugFlag || cfg.Debug)

	cmd, args := "serve", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args, cfg)
	case "import-pois":
		err = runImport(args, cfg)
	case "watch":
		err = runWatch(args, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		logger.Fatal("%s: %v", cmd, err)
	}
}

func runServe(args []string, cfg config) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Listen, "listen address")
	dbPath := fs.String("db", cfg.DBPath, "POI database path")
	geoclue := fs.Bool("geoclue", false, "publish GeoClue fixes on /api/location")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openPOIStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("POI store %s: %d POI(s)", *dbPath, store.Count())
	if cfg.ORSKey == "" {
		logger.Error("%s is not set; /api/walk_routes will fail", envORSKey)
	}

	relay := newLocationRelay()
	a := &api{
		planner: newORSPlanner(cfg.ORSURL, cfg.ORSKey),
		store:   store,
		relay:   relay,
		kinds:   cfg.Kinds,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *geoclue {
		if err := location.EnsureDesktopFile(desktopID, "Walkmap"); err != nil {
			logger.Error("desktop file: %v", err)
		}
		tracker := location.NewTracker(location.NewGeoClueSource(desktopID), location.Options{HighAccuracy: true})
		tracker.OnFix = func(p geo.Position) {
			relay.Publish(location.Fix{Lat: p.Lat, Lng: p.Lng, Accuracy: p.Accuracy, Timestamp: p.Timestamp})
		}
		tracker.Start(ctx)
		defer tracker.Stop()
	}

	srv := &http.Server{Addr: *listen, Handler: newRouter(a)}
	errc := make(chan error, 1)
	go func() {
		logger.Info("API server listening on http://%s", *listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(args []string, cfg config) error {
	fs := flag.NewFlagSet("import-pois", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "POI database path")
	query := fs.String("q", "", "search query; repeat with ';' (e.g. \"cafe near Aoshima;Udo Shrine\")")
	limit := fs.Int("limit", 10, "results per query")
	if err := fs.Parse(args); err != nil {
		return err
	}
	queries := strings.Split(*query, ";")
	queries = append(queries, fs.Args()...)
	if strings.TrimSpace(strings.Join(queries, "")) == "" {
		return errors.New("no query given (-q)")
	}

	store, err := openPOIStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newPOIImporter(store, cfg.NominatimServer).Import(ctx, queries, *limit)
	if err != nil {
		return err
	}
	logger.Info("imported %d new POI(s) into %s (total %d)", n, filepath.Base(*dbPath), store.Count())
	return nil
}
