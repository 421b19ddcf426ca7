package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"latus/internal/config"
	"latus/internal/crypto"
	"latus/internal/logging"
)

var (
	initFolder     string
	initCloud      string
	initPassphrase string
	initForce      bool
)

// initCmd sets up this node: config file, node ID, encryption key.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up this machine as a latus node",
	Long: `Creates the configuration file, generates a node ID and an encryption key.

The first machine generates a fresh key. Further machines must import the
same key (see "latus key export" / "latus key import") or they cannot read
each other's files.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initFolder, "folder", "", "local folder to synchronize (required)")
	initCmd.Flags().StringVar(&initCloud, "cloud", "", "mounted cloud folder (required)")
	initCmd.Flags().StringVar(&initPassphrase, "passphrase", "", "passphrase protecting the key file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
	_ = initCmd.MarkFlagRequired("folder")
	_ = initCmd.MarkFlagRequired("cloud")
}

func runInit(cmd *cobra.Command, args []string) error {
	dirs := appDirs()

	if _, err := os.Stat(dirs.ConfigFile()); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", dirs.ConfigFile())
	}

	folder, err := filepath.Abs(initFolder)
	if err != nil {
		return err
	}
	cloud, err := filepath.Abs(initCloud)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.NodeID = uuid.NewString()
	cfg.LatusFolder = folder
	cfg.CloudRoot = cloud
	cfg.KeyPath = dirs.KeyFile()

	key, err := crypto.NewKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveKey(cfg.KeyPath, key, passphrase(initPassphrase)); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := cfg.Save(dirs.ConfigFile()); err != nil {
		return err
	}

	if err := logging.Initialize(dirs.Logs(), cfg.LoggingSettings()); err != nil {
		return err
	}
	logging.Boot("node initialized: %s", cfg.NodeID)

	logger.Info("node initialized",
		zap.String("node_id", cfg.NodeID),
		zap.String("folder", cfg.LatusFolder),
		zap.String("cloud", cfg.CloudRoot),
		zap.String("config", dirs.ConfigFile()))
	fmt.Printf("node %s initialized\nconfig: %s\nkey:    %s\n",
		cfg.NodeID, dirs.ConfigFile(), cfg.KeyPath)
	fmt.Println("on your other machines, import the same key with `latus key import`")
	return nil
}

// passphrase prefers the flag, then the environment, so scripts never have
// to put secrets on the command line.
func passphrase(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("LATUS_PASSPHRASE")
}
