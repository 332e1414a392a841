package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/config"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/httpapi"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/notify"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/persistence"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/syncer"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/trigger"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/upload"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/pkg/log"
)

func main() {
	_ = godotenv.Load()

	syncOnce := flag.Bool("sync-once", false, "run a single sync pass and exit")
	flag.Parse()

	cfg, err := config.NewFromEnv()
	if err != nil {
		stdlog.Fatal("Failed to load configuration: ", err)
	}

	closeLog, err := initLogging(cfg)
	if err != nil {
		stdlog.Fatal("Failed to initialize logging: ", err)
	}
	defer closeLog()

	if *syncOnce {
		code := runSyncOnce(cfg)
		closeLog()
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("Daemon exited with error: %v", err)
	}
}

func initLogging(cfg *config.Config) (func(), error) {
	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		fl, err := log.InitFileLogger(cfg.Log.File, level)
		if err != nil {
			return nil, err
		}
		return func() { _ = fl.Close() }, nil
	}
	log.InitLogger(level)
	return func() {}, nil
}

// runSyncOnce is the detached sync mode: one pass over the stored queue,
// result on stdout, exit code 1 when the pass stopped on a failure. A
// supervisor or timer unit runs this while the daemon is not up.
func runSyncOnce(cfg *config.Config) int {
	store, err := persistence.NewSQLiteStore(cfg.Store.DBFile())
	if err != nil {
		log.Error("Failed to open queue database: %v", err)
		return 1
	}
	defer store.Close()

	notifier := notify.NewNotifier()
	manager := queue.NewManager(store, notifier)
	settings := loadSettings(cfg)
	client := upload.NewClient(settings.UploadURL, uploadTimeout(cfg))
	engine := syncer.NewEngine(store, client, manager, notifier)

	result := engine.Trigger(context.Background(), "background")
	_ = json.NewEncoder(os.Stdout).Encode(result)
	if result.Stopped {
		return 1
	}
	return 0
}

// loadSettings prefers the persisted runtime settings over the env config,
// so a dispatcher's terminal changes survive restarts.
func loadSettings(cfg *config.Config) config.RuntimeSettings {
	settings, err := config.LoadRuntimeSettingsFile(cfg.Store.SettingsFile())
	if err == nil && settings.Validate() == nil {
		return settings
	}
	return cfg.RuntimeSettings()
}

func uploadTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Upload.TimeoutSeconds) * time.Second
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.Store.DBFile())
	if err != nil {
		return fmt.Errorf("open queue database: %w", err)
	}
	defer store.Close()

	notifier := notify.NewNotifier()

	// The manager's sync requester and the engine reference each other, so
	// the requester resolves the engine lazily.
	var (
		engineMu sync.Mutex
		engine   *syncer.Engine
	)
	fire := func(ctx context.Context, source string) {
		engineMu.Lock()
		eng := engine
		engineMu.Unlock()
		if eng != nil {
			eng.Trigger(ctx, source)
		}
	}

	manager := queue.NewManager(store, notifier,
		queue.WithSyncRequester(func(ctx context.Context) {
			go fire(context.WithoutCancel(ctx), "enqueue")
		}),
	)

	settings := loadSettings(cfg)
	settingsStore, err := config.NewRuntimeSettingsStore(cfg.Store.SettingsFile(), settings)
	if err != nil {
		return fmt.Errorf("init settings store: %w", err)
	}

	client := upload.NewClient(settings.UploadURL, uploadTimeout(cfg))

	engineMu.Lock()
	engine = syncer.NewEngine(store, client, manager, notifier)
	engineMu.Unlock()

	cronEngine := cron.New()
	var (
		entryMu sync.Mutex
		entryID cron.EntryID
	)
	entryID, err = trigger.Schedule(cronEngine, settings.SyncCron, func(ctx context.Context) {
		fire(ctx, "timer")
	})
	if err != nil {
		return err
	}

	applySettings := func(next config.RuntimeSettings) error {
		client.SetEndpoint(next.UploadURL)
		entryMu.Lock()
		defer entryMu.Unlock()
		id, err := trigger.Reschedule(cronEngine, entryID, next.SyncCron, func(ctx context.Context) {
			fire(ctx, "timer")
		})
		if err != nil {
			return err
		}
		entryID = id
		log.Info("Runtime settings applied: endpoint=%s cron=%q", next.UploadURL, next.SyncCron)
		return nil
	}

	watcher := trigger.NewWatcher(client, probeInterval(cfg), func(ctx context.Context) {
		fire(ctx, "online")
	})

	httpSrv := httpapi.NewServer(manager, engine, notifier,
		httpapi.WithUI(cfg.HTTP.UIDir, cfg.HTTP.UIEnabled),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(applySettings),
	)

	return runWithComponents(ctx, cfg, fire, cronEngine, httpSrv,
		manager.Run, watcher.Run)
}

func probeInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Sync.ProbeIntervalSeconds) * time.Second
}

type cronRunner interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// runWithComponents wires the trigger surface and the HTTP server and blocks
// until ctx is cancelled or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	fire func(ctx context.Context, source string),
	cronEngine cronRunner,
	httpSrv httpServer,
	runners ...func(ctx context.Context),
) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Startup trigger: drain anything left over from the previous run.
	go fire(runCtx, "startup")

	cronEngine.Start()
	defer cronEngine.Stop()

	for _, runner := range runners {
		go runner(runCtx)
	}

	// SIGUSR1 is the external wake-up, the same path a detached sync
	// supervisor uses through POST /api/sync.
	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGUSR1)
	defer signal.Stop(wake)
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case <-wake:
				log.Info("Wake signal received, requesting sync")
				go fire(runCtx, "wake")
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Terminal API listening on %s", cfg.HTTP.Addr)
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
