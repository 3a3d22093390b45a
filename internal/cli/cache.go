package cli

import (
	"github.com/spf13/cobra"

	"github.com/xcube-dev/clmsfetch/pkg/cache"
)

// NewCacheCmd creates the cache command with subcommands
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the dataset cache",
		Long:  "List, inspect and clean the cached dataset artifacts",
	}

	cmd.AddCommand(
		newCacheListCmd(),
		newCacheInfoCmd(),
		newCacheCleanCmd(),
		newCacheDirCmd(),
	)

	return cmd
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached datasets",
		Long:  "Display the dataset keys currently held in the cache",
		RunE:  runCacheList,
	}
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		Long:  "Display size and artifact count of the dataset cache",
		RunE:  runCacheInfo,
	}
}

func newCacheCleanCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the dataset cache",
		Long:  "Remove cached artifacts to free up disk space",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClean(cmd, key)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "remove only the artifact for this dataset key")

	return cmd
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show cache directory path",
		Long:  "Display the path to the cache directory",
		RunE:  runCacheDir,
	}
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openCacheIndex(cfg)
	if err != nil {
		return err
	}

	keys := idx.Keys()
	if len(keys) == 0 {
		cmd.Println("Cache is empty.")
		return nil
	}
	for _, key := range keys {
		cmd.Println(key)
	}
	return nil
}

func runCacheInfo(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openCacheIndex(cfg)
	if err != nil {
		return err
	}

	info, err := idx.Info()
	if err != nil {
		return err
	}

	cmd.Printf("Cache Directory: %s\n", info.Directory)
	cmd.Printf("Artifacts: %d\n", info.Artifacts)
	cmd.Printf("Total Size: %s\n", cache.FormatBytes(info.TotalSize))
	return nil
}

func runCacheClean(cmd *cobra.Command, key string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openCacheIndex(cfg)
	if err != nil {
		return err
	}

	var freed int64
	if key != "" {
		freed, err = idx.Remove(key)
	} else {
		freed, err = idx.Clear()
	}
	if err != nil {
		return err
	}

	if freed > 0 {
		cmd.Printf("Freed %s of disk space.\n", cache.FormatBytes(freed))
	} else {
		cmd.Println("No files were removed from the cache.")
	}
	return nil
}

func runCacheDir(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.Println(cfg.Settings.CacheDir)
	return nil
}
