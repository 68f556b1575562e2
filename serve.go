package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"giffer/internal/database"
	"giffer/internal/filesystem"
	"giffer/internal/handlers"
	"giffer/internal/intake"
	"giffer/internal/logging"
	"giffer/internal/media"
	"giffer/internal/mediatypes"
	"giffer/internal/metrics"
	"giffer/internal/middleware"
	"giffer/internal/notify"
	"giffer/internal/reconciler"
	"giffer/internal/startup"
	"giffer/internal/tagstore"
	"giffer/internal/watcher"
	"giffer/internal/workers"
)

const shutdownTimeout = 10 * time.Second

// runService runs giffer until ctx is cancelled. The instance lock is taken
// before anything else is written; when another instance holds it, file is
// dropped into the shared library for that instance to pick up.
func runService(ctx context.Context, v *viper.Viper, file string) error {
	startTime := time.Now()

	startup.PrintBanner()
	cfg, err := startup.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	lock, err := startup.AcquireLock(cfg.DataDir)
	if errors.Is(err, startup.ErrAlreadyRunning) {
		logging.Info("GIFfer is already running")
		if file == "" {
			return nil
		}
		lib, err := filesystem.NewLibrary(cfg.LibraryDir, mediatypes.NewFilter(cfg.Extensions))
		if err != nil {
			return err
		}
		ingestArg(lib, file)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.Warn("%v", err)
		}
	}()

	if cfg.LogFile != "" {
		logFile, err := logging.RotatingFile(cfg.LogFile)
		if err != nil {
			return err
		}
		logging.SetOutput(io.MultiWriter(os.Stderr, logFile))
		defer func() {
			logging.SetOutput(os.Stderr)
			_ = logFile.Close()
		}()
	}

	if err := startup.PrepareDirectories(cfg); err != nil {
		return err
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library": cfg.LibraryDir,
		"intake":  cfg.IntakeDir,
		"data":    cfg.DataDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	lib, err := filesystem.NewLibrary(cfg.LibraryDir, mediatypes.NewFilter(cfg.Extensions))
	if err != nil {
		return err
	}
	if file != "" {
		ingestArg(lib, file)
	}

	// Store
	storeStart := time.Now()
	store, location, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := notify.NewHub()
	rec := reconciler.New(store, lib, hub)

	loadErr := store.Load(ctx)
	switch {
	case loadErr == nil:
	case store.Held():
		rec.Warn(fmt.Sprintf("The tag index could not be loaded and is left untouched on disk. "+
			"GIFs are shown untagged; your next tag edit or delete will save over it: %v", loadErr))
	default:
		rec.Warn(fmt.Sprintf("The tag index could not be read and GIFfer started with an empty index: %v", loadErr))
	}
	startup.LogStoreInit(store.Backend(), location, store.Len(), time.Since(storeStart))

	metrics.InitializeMetrics(store.Backend())
	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return rec.Run(gctx) })

	// Watcher and startup scan. The watcher starts first so changes made
	// during the scan are queued rather than missed.
	libWatcher, err := watcher.New(watcher.Config{
		Name:       "library",
		Dir:        cfg.LibraryDir,
		Filter:     lib.Filter(),
		Quiescence: cfg.Quiescence,
	})
	if err != nil {
		return err
	}
	if err := libWatcher.Start(gctx); err != nil {
		return fmt.Errorf("failed to watch library: %w", err)
	}
	defer func() { _ = libWatcher.Stop() }()

	added, removed, err := applyScan(gctx, rec, lib, store.Snapshot().Names())
	if err != nil {
		logging.Warn("Startup scan failed, keeping the index as loaded: %v", err)
	}
	startup.LogWatcherInit(cfg.LibraryDir, cfg.Quiescence, added, removed)
	g.Go(func() error { return rec.Feed(gctx, libWatcher.Events()) })

	if cfg.IntakeDir != "" {
		intakeWatcher, err := watcher.New(watcher.Config{
			Name:        "intake",
			Dir:         cfg.IntakeDir,
			Filter:      lib.Filter(),
			Quiescence:  cfg.IntakeQuiescence,
			CreatesOnly: true,
		})
		if err != nil {
			return err
		}
		in := intake.New(cfg.IntakeDir, intakeWatcher, lib)
		startup.LogIntakeInit(cfg.IntakeDir, cfg.IntakeQuiescence)
		g.Go(func() error { return in.Run(gctx) })
	}

	// HTTP
	thumbs, err := media.NewThumbnailGenerator(lib, cfg.ThumbnailCacheSize)
	if err != nil {
		return err
	}
	g.Go(func() error {
		warmThumbnails(gctx, thumbs, rec.Snapshot().Names(), cfg)
		return nil
	})

	h := handlers.New(rec, lib, thumbs, hub, cfg.SearchDebounce)
	router := mux.NewRouter()
	h.Register(router)
	router.Use(middleware.Metrics())
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	loggingConfig.LogMediaRequests = cfg.LogMediaRequests
	handler := middleware.Logger(loggingConfig)(middleware.Compression(middleware.DefaultCompressionConfig())(router))

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}
	g.Go(func() error { return serve(srv, ln) })

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		mln, err := net.Listen("tcp", cfg.MetricsAddr())
		if err != nil {
			logging.Warn("Metrics server disabled: %v", err)
		} else {
			metricsSrv = metrics.NewServer(cfg.MetricsAddr())
			g.Go(func() error { return serve(metricsSrv, mln) })
		}
	}

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Addr:            cfg.Addr(),
		MetricsAddr:     cfg.MetricsAddr(),
		MetricsEnabled:  metricsSrv != nil,
		StartupDuration: time.Since(startTime),
	})

	g.Go(func() error {
		<-gctx.Done()
		reason := "context cancelled"
		if ctx.Err() != nil {
			reason = "signal received"
		}
		startup.LogShutdownInitiated(reason)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		startup.LogShutdownStep("Closing gallery sessions")
		hub.Close()
		startup.LogShutdownStepComplete("Gallery sessions closed")

		startup.LogShutdownStep("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("HTTP server stopped")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("Metrics server shutdown error: %v", err)
			}
		}
		return nil
	})

	err = g.Wait()
	startup.LogShutdownComplete()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// openStore builds the tag store for the configured backend. The returned
// close func releases the backend.
func openStore(ctx context.Context, cfg *startup.Config) (*tagstore.Store, string, func(), error) {
	if cfg.StoreBackend == startup.BackendSQLite {
		db, err := database.New(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to open tag database: %w", err)
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logging.Warn("Failed to close tag database: %v", err)
			}
		}
		return tagstore.New(db), cfg.DatabasePath, closeDB, nil
	}
	return tagstore.New(tagstore.NewFilePersister(cfg.TagsFile)), cfg.TagsFile, func() {}, nil
}

// applyScan reconciles the loaded index with the library contents and
// reports how many entries were added and removed.
func applyScan(ctx context.Context, rec *reconciler.Reconciler, lib watcher.Lister, known []string) (added, removed int, err error) {
	events, err := watcher.Scan(ctx, lib, known)
	if err != nil {
		return 0, 0, err
	}
	for _, ev := range events {
		res := rec.Handle(ctx, ev)
		if !res.Success {
			logging.Warn("Startup scan: %s %s: %s", ev.Kind, ev.Name, res.Error)
			continue
		}
		switch ev.Kind {
		case watcher.FileAdded:
			added++
		case watcher.FileRemoved:
			removed++
		}
	}
	return added, removed, nil
}

// warmThumbnails renders thumbnails for up to one cache's worth of indexed
// files so the first gallery load is served from memory.
func warmThumbnails(ctx context.Context, thumbs *media.ThumbnailGenerator, names []string, cfg *startup.Config) {
	if len(names) > cfg.ThumbnailCacheSize {
		names = names[:cfg.ThumbnailCacheSize]
	}
	if len(names) == 0 {
		return
	}
	n := workers.ForCPU(4, cfg.ThumbnailWorkers)
	start := time.Now()
	warmed := thumbs.Warm(ctx, names, n)
	logging.Debug("Thumbnail warm-up: %d/%d in %v using %d workers", warmed, len(names), time.Since(start), n)
}

// ingestArg copies a file named on the command line into the library. A
// file of an untracked type is ignored.
func ingestArg(lib *filesystem.Library, file string) {
	name, err := lib.Ingest(file)
	switch {
	case err == nil:
		logging.Info("Added %s to the library", name)
	case errors.Is(err, filesystem.ErrInvalidName):
		logging.Debug("Ignoring %s: %v", file, err)
	default:
		logging.Warn("Failed to add %s: %v", file, err)
	}
}
