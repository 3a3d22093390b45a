package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcube-dev/clmsfetch/pkg/model"
	"github.com/xcube-dev/clmsfetch/pkg/orchestrator"
)

// NewPreloadCmd creates the preload command.
func NewPreloadCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "preload PRODUCT|FILE...",
		Short: "Download and cache datasets",
		Long: `Request server-side packaging of the given datasets, download the
payloads, merge the raster tiles and store the result in the local cache.
Each argument is a dataset key of the form PRODUCT|FILE. Datasets already
in the cache are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreload(cmd, args, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "EEA", "dataset source hosting the files")

	return cmd
}

func runPreload(cmd *cobra.Command, args []string, source string) error {
	items := make([]model.DatasetItem, 0, len(args))
	for _, arg := range args {
		datasetID, fileID, ok := model.SplitKey(arg)
		if !ok {
			return fmt.Errorf("invalid dataset key %q, want PRODUCT%sFILE", arg, model.KeySeparator)
		}
		items = append(items, model.DatasetItem{DatasetID: datasetID, FileID: fileID, Source: source})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	hooks := orchestrator.Hooks{OnState: func(s model.PreloadState) {
		if s.Err != nil {
			cmd.PrintErrf("%s  failed: %v\n", s.Key, s.Err)
			return
		}
		cmd.Printf("%s  %3.0f%%  %s\n", s.Key, s.Progress*100, s.Message)
	}}

	orch, err := buildOrchestrator(cfg, hooks)
	if err != nil {
		return err
	}
	defer func() { _ = orch.Close() }()

	return orch.Preload(cmd.Context(), items)
}
