package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ayusman/signpost/internal/app"
	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/capture"
	"github.com/ayusman/signpost/internal/config"
	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/logger"
	"github.com/ayusman/signpost/internal/plugin"
	"github.com/ayusman/signpost/internal/server"
	"github.com/ayusman/signpost/internal/store"
	"github.com/ayusman/signpost/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the perception loop",
	Long: `Run reads frames from the configured source until ESC or quit is
requested, the process is interrupted, or the source stops producing frames.

Optional surfaces are enabled by their settings: --server for the HTTP API,
--store for the run journal, --plugins for action hooks and --tray for the
status tray.`,
	RunE: runLoop,
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("source", "0", "camera index or video file")
	flags.Bool("headless", false, "run without desktop windows")
	flags.String("server", "", "HTTP listen address, e.g. :8080")
	flags.String("store", "", "SQLite journal path")
	flags.String("plugins", "", "action hook directory")
	flags.Bool("tray", false, "show the status tray")
	flags.String("snapshot", "processing_steps.png", "processing steps snapshot path")
}

func init() {
	addRunFlags(runCmd)
}

// bindRunFlags binds the flags of whichever command is running.
func bindRunFlags(flags *pflag.FlagSet) {
	mustBind("camera.source", flags.Lookup("source"))
	mustBind("server.addr", flags.Lookup("server"))
	mustBind("store.path", flags.Lookup("store"))
	mustBind("plugins.dir", flags.Lookup("plugins"))
	mustBind("tray.enabled", flags.Lookup("tray"))
	mustBind("display.snapshot_path", flags.Lookup("snapshot"))
}

func mustBind(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func runLoop(cmd *cobra.Command, args []string) error {
	// Flags are bound late so that run and the root command share keys.
	bindRunFlags(cmd.Flags())
	loaded, err := config.Load(v, configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if headless, _ := cmd.Flags().GetBool("headless"); headless {
		cfg.Display.Enabled = false
	}

	log := logger.Named("signpost")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	camera := capture.NewCameraWithOptions(capture.Options{
		Source: cfg.Camera.Source,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    capture.DefaultFPS,
	})

	detCfg := detector.DefaultConfig()
	detCfg.Dictionary = cfg.Marker.Dictionary
	det, err := detector.NewArucoDetector(detCfg)
	if err != nil {
		return errors.Wrap(err, "create detector")
	}

	queue := calibration.NewQueue(calibration.DefaultQueueSize)
	appCfg := app.Config{
		Camera:       camera,
		Detector:     det,
		Pipeline:     cfg.Pipeline(),
		Calibration:  cfg.CalibrationSettings(),
		Commands:     queue,
		SnapshotPath: cfg.Display.SnapshotPath,
		Source:       cfg.Camera.Source,
	}

	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			det.Close()
			return errors.Wrap(err, "open journal")
		}
		defer st.Close()
		appCfg.Store = st
		log.Infow("Journal enabled", "path", cfg.Store.Path)
	}

	if cfg.Plugins.Dir != "" {
		mgr := plugin.NewManager(cfg.Plugins.Dir)
		if err := mgr.Discover(); err != nil {
			log.Warnw("Hook discovery failed", "dir", cfg.Plugins.Dir, "error", err)
		}
		hooks := plugin.NewDispatcher(mgr, plugin.NewExecutor(plugin.DefaultTimeoutMs), plugin.DefaultQueueSize)
		hooks.Start(ctx)
		defer hooks.Close()
		appCfg.Hooks = hooks
		log.Infow("Action hooks enabled", "dir", cfg.Plugins.Dir, "hooks", len(mgr.List()))
	}

	if trayForcesHeadless(cfg) {
		log.Warnw("The tray owns the GUI thread, running without desktop windows")
	}
	if cfg.Display.Enabled {
		window := display.NewWindow()
		defer window.Close()
		appCfg.Sinks = append(appCfg.Sinks, window)
		appCfg.Console = window
	}

	if cfg.Server.Addr != "" {
		hub := server.NewHub(server.DefaultPublishRate)
		defer hub.Close()
		appCfg.Sinks = append(appCfg.Sinks, hub)

		srv := server.New(server.Config{Store: appCfg.Store, Hub: hub, Commands: queue})
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				log.Errorw("HTTP server failed", "addr", cfg.Server.Addr, "error", err)
			}
		}()
	}

	var tr *tray.Tray
	if cfg.Tray.Enabled {
		tr = tray.New(queue)
		appCfg.Sinks = append(appCfg.Sinks, tr)
	}

	a, err := app.New(appCfg)
	if err != nil {
		det.Close()
		return err
	}
	defer a.Close()

	if tr == nil {
		return a.Run(ctx)
	}

	// The tray owns the main thread; the loop runs beside it.
	closeTray := context.AfterFunc(ctx, func() { tr.Close() })
	defer closeTray()
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		tr.Close()
	}()
	tr.Run()
	stop()
	return <-done
}

// trayForcesHeadless turns the desktop windows off when the tray is enabled.
// The tray runs the toolkit main loop on the locked main thread, so the
// windows would be driven from the loop goroutine on another thread.
func trayForcesHeadless(cfg *config.Config) bool {
	if !cfg.Tray.Enabled || !cfg.Display.Enabled {
		return false
	}
	cfg.Display.Enabled = false
	return true
}
