package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcube-dev/clmsfetch/pkg/auth"
	"github.com/xcube-dev/clmsfetch/pkg/httpclient"
	"github.com/xcube-dev/clmsfetch/pkg/jobs"
	"github.com/xcube-dev/clmsfetch/pkg/model"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status PRODUCT|FILE...",
		Short: "Show download job status",
		Long:  "Query the remote service for the definitive download job status of the given dataset keys",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	creds, err := auth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return err
	}
	tokens, err := auth.NewJWTTokenSource(creds, cfg.Settings.HTTPTimeout)
	if err != nil {
		return err
	}

	client := httpclient.NewClient(httpclient.Options{Timeout: cfg.Settings.HTTPTimeout})
	tracker := jobs.NewTracker(cfg.Service.StatusURL, client, tokens)

	for _, arg := range args {
		datasetID, fileID, ok := model.SplitKey(arg)
		if !ok {
			return fmt.Errorf("invalid dataset key %q, want PRODUCT%sFILE", arg, model.KeySeparator)
		}
		item := model.DatasetItem{DatasetID: datasetID, FileID: fileID}

		status, jobID, err := tracker.ResolveStatus(cmd.Context(), jobs.ForItem(item))
		if err != nil {
			return err
		}
		if jobID == "" {
			cmd.Printf("%s  %s\n", arg, status)
			continue
		}
		cmd.Printf("%s  %s  (job %s)\n", arg, status, jobID)
	}
	return nil
}
