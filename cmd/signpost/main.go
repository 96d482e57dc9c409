package main

import (
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ayusman/signpost/internal/config"
	"github.com/ayusman/signpost/internal/logger"
)

var (
	v          = config.New()
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "signpost",
	Short: "Signpost - fiducial marker sign perception",
	Long: `Signpost reads camera frames, detects AprilTag markers, estimates their
distance and turns the nearest one into a driving action.

Available commands:
  run      - Run the perception loop (default)
  guide    - Print focal length calibration guidance
  markers  - Generate printable markers for the action table

Examples:
  signpost                              # Camera 0 with the desktop windows
  signpost run --source drive.mp4       # Replay a recording
  signpost run --headless --server :8080 --store signpost.db
  signpost markers --out ./markers --size 600`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
			return errors.Wrap(err, "initialize logger")
		}
		return nil
	},
	RunE: runLoop,
}

func init() {
	// OpenCV windows and the tray must be driven from the main thread.
	runtime.LockOSThread()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (TOML, YAML or JSON)")
	flags.Bool("json", false, "emit JSON logs")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	mustBind("log.json", flags.Lookup("json"))
	mustBind("log.level", flags.Lookup("log-level"))

	addRunFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(guideCmd)
	rootCmd.AddCommand(markersCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		pterm.Error.Println(err.Error())
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
