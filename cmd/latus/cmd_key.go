package main

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"latus/internal/crypto"
)

var keyPassphrase string

// keyCmd groups key management subcommands. All of a user's nodes must share
// one content key; these commands move it between machines.
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Export or import the shared encryption key",
}

var keyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the key as base64 for transfer to another machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.KeyPath == "" {
			return fmt.Errorf("no key configured (run `latus init`)")
		}
		key, err := crypto.LoadKey(cfg.KeyPath, passphrase(keyPassphrase))
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key))
		return nil
	},
}

var keyImportCmd = &cobra.Command{
	Use:   "import [base64-key]",
	Short: "Install a key exported from another machine",
	Long: `Installs a key printed by "latus key export". The key can be passed as an
argument or piped on stdin. Overwrites this node's key file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dirs, err := loadConfig()
		if err != nil {
			return err
		}

		var encoded string
		if len(args) == 1 {
			encoded = args[0]
		} else {
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("no key provided")
			}
			encoded = line
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return fmt.Errorf("invalid base64 key: %w", err)
		}
		if len(raw) != crypto.KeySize {
			return fmt.Errorf("key must be %d bytes, got %d", crypto.KeySize, len(raw))
		}

		keyPath := cfg.KeyPath
		if keyPath == "" {
			keyPath = dirs.KeyFile()
			cfg.KeyPath = keyPath
			if err := cfg.Save(dirs.ConfigFile()); err != nil {
				return err
			}
		}
		if err := crypto.SaveKey(keyPath, crypto.Key(raw), passphrase(keyPassphrase)); err != nil {
			return err
		}
		fmt.Printf("key installed at %s\n", keyPath)
		return nil
	},
}

func init() {
	keyCmd.PersistentFlags().StringVar(&keyPassphrase, "passphrase", "", "passphrase for the key file")
	keyCmd.AddCommand(keyExportCmd)
	keyCmd.AddCommand(keyImportCmd)
}
