package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"latus/internal/folders"
	"latus/internal/nodedb"
	"latus/internal/syncer"
)

// statusCmd reports the state of this node and the shared folder.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status for this node and its peers",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, dirs, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("node:   %s\n", cfg.NodeID)
	fmt.Printf("folder: %s\n", cfg.LatusFolder)
	fmt.Printf("cloud:  %s\n", cfg.CloudRoot)

	for _, kind := range []string{"local", "cloud"} {
		st, err := syncer.ReadStatus(dirs.Logs(), kind)
		if err != nil {
			fmt.Printf("%-5s : no status yet\n", kind)
			continue
		}
		sec := int64(st.Timestamp)
		nsec := int64((st.Timestamp - float64(sec)) * float64(time.Second))
		fmt.Printf("%-5s : %s (updates %d, last %s)\n",
			kind, st.State, st.Count, time.Unix(sec, nsec).Local().Format(time.RFC3339))
	}

	cloud := folders.NewCloudFolders(cfg.CloudRoot)
	ids, err := nodedb.ListNodeIDs(cloud.NodeDB())
	if err != nil {
		return err
	}
	fmt.Printf("peers:  %d\n", len(ids))
	for _, id := range ids {
		marker := " "
		if id == cfg.NodeID {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, id)
	}
	return nil
}
