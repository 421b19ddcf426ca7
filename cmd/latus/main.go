// latus synchronizes a local folder between machines through any shared
// cloud folder, encrypting everything before it leaves the machine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"latus/internal/config"
	"latus/internal/folders"
	"latus/internal/logging"
)

var (
	// Global flags
	verbose   bool
	configDir string

	// Console logger for user-facing output. Verbosity here is independent
	// of the diagnostic file logs configured in config.yaml.
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "latus",
	Short: "latus - secure folder sync through any cloud folder",
	Long: `latus keeps a folder synchronized between your machines using a shared
cloud folder (Dropbox, Syncthing, a mounted share) as the rendezvous.

File contents are compressed and encrypted before they reach the cloud
folder; the cloud service only ever sees opaque blobs and small event
databases. There is no latus server.

Start with:
  latus init --folder ~/latus --cloud ~/Dropbox`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// appDirs resolves the application directories from the --config flag.
func appDirs() folders.AppDirs {
	return folders.NewAppDirs(configDir)
}

// loadConfig loads the config file and brings up diagnostic logging.
func loadConfig() (*config.Config, folders.AppDirs, error) {
	dirs := appDirs()
	cfg, err := config.Load(dirs.ConfigFile())
	if err != nil {
		return nil, dirs, err
	}
	if err := logging.Initialize(dirs.Logs(), cfg.LoggingSettings()); err != nil {
		return nil, dirs, err
	}
	return cfg, dirs, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose console output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "",
		"application directory (default ~/.latus)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(keyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
