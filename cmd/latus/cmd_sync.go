package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"latus/internal/crypto"
	"latus/internal/syncer"
)

var syncPassphrase string

// syncCmd runs synchronization until interrupted.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run synchronization until interrupted",
	Long: `Watches the local folder and the cloud metadata folder, publishing local
changes and applying remote ones as they happen. Runs until SIGINT/SIGTERM.`,
	RunE: runSync,
}

// scanCmd performs a single full pass and exits.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one full sync pass and exit",
	RunE:  runScan,
}

func init() {
	for _, c := range []*cobra.Command{syncCmd, scanCmd} {
		c.Flags().StringVar(&syncPassphrase, "passphrase", "", "passphrase for the key file")
	}
}

// buildSync loads config and key and constructs the syncer.
func buildSync() (*syncer.Sync, error) {
	cfg, dirs, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := crypto.LoadKey(cfg.KeyPath, passphrase(syncPassphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to load key: %w", err)
	}
	return syncer.New(syncer.Options{
		Key:         key,
		NodeID:      cfg.NodeID,
		LatusFolder: cfg.LatusFolder,
		CloudRoot:   cfg.CloudRoot,
		StatusDir:   dirs.Logs(),
	})
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := buildSync()
	if err != nil {
		return err
	}
	defer s.Stop()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Info("sync running, press ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down")
	case <-ctx.Done():
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := buildSync()
	if err != nil {
		return err
	}
	defer s.Stop()

	s.Scan(cmd.Context())

	local, cloud := s.LocalStats(), s.CloudStats()
	logger.Info("scan complete",
		zap.Int("local_scans", local.Scans),
		zap.Int("cloud_scans", cloud.Scans),
		zap.Int("errors", local.Errors+cloud.Errors))
	fmt.Println("scan complete")
	return nil
}
