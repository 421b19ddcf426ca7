package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"latus/internal/analyze"
	"latus/internal/hash"
)

// analyzeCmd groups the content analysis subcommands.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Content analysis: duplicates and folder comparison",
}

var analyzeDupesCmd = &cobra.Command{
	Use:   "dupes [folder]",
	Short: "List files with identical contents inside a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		dupes, err := a.NonUniques(args[0])
		if err != nil {
			return err
		}
		if len(dupes) == 0 {
			fmt.Println("no duplicate contents found")
			return nil
		}
		for sum, paths := range dupes {
			fmt.Printf("%s…\n", sum[:16])
			for _, p := range paths {
				fmt.Printf("  %s\n", p)
			}
		}
		return nil
	},
}

var analyzeDiffCmd = &cobra.Command{
	Use:   "diff [folder-a] [folder-b]",
	Short: "List contents present in folder-a but not folder-b",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		missing, err := a.Difference(args[0], args[1])
		if err != nil {
			return err
		}
		for _, fp := range missing {
			fmt.Println(fp.Abs())
		}
		return nil
	},
}

var analyzeCommonCmd = &cobra.Command{
	Use:   "common [folder-a] [folder-b]",
	Short: "List contents present in both folders",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		both, err := a.Intersection(args[0], args[1])
		if err != nil {
			return err
		}
		for _, fp := range both {
			fmt.Println(fp.Abs())
		}
		return nil
	},
}

func init() {
	analyzeCmd.AddCommand(analyzeDupesCmd)
	analyzeCmd.AddCommand(analyzeDiffCmd)
	analyzeCmd.AddCommand(analyzeCommonCmd)
}

// newAnalyzer builds an analyzer on the node's persistent hash cache so
// repeated analysis stays fast.
func newAnalyzer() (*analyze.Analyzer, func(), error) {
	_, dirs, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cache, err := hash.NewCache(filepath.Join(dirs.Logs(), "hashcache.db"))
	if err != nil {
		return nil, nil, err
	}
	return analyze.New(cache), func() { cache.Close() }, nil
}
