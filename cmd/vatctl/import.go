package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yuchialin/vat-filing/internal/application/service"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import reconciliation feeds for a client period",
	Example: `  # Import one uploaded feed
  vatctl import --client client-1 --period 11305 --file uploads/feed.xlsx

  # Import several feeds concurrently, defaulting rows without a direction
  vatctl import --client client-1 --period 11305 \
    --file uploads/sales.xlsx --file uploads/purchases.csv --default-direction in`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("client", "", "Client ID")
	importCmd.Flags().String("period", "", "Period code (ROC yyyMM, e.g. 11305)")
	importCmd.Flags().StringArray("file", nil, "Storage reference of an uploaded feed (repeatable)")
	importCmd.Flags().String("default-direction", "", "Fallback direction for rows without one (in|out)")
	importCmd.MarkFlagRequired("client")
	importCmd.MarkFlagRequired("period")
	importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	clientID, _ := cmd.Flags().GetString("client")
	periodCode, _ := cmd.Flags().GetString("period")
	files, _ := cmd.Flags().GetStringArray("file")
	direction, _ := cmd.Flags().GetString("default-direction")

	ctx := cmd.Context()
	app, logger, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer logger.Sync()

	inputs := make([]service.ImportInput, len(files))
	for i, f := range files {
		inputs[i] = service.ImportInput{
			ClientID:   clientID,
			StorageRef: f,
			FileName:   filepath.Base(f),
			PeriodCode: periodCode,
			Direction:  entity.Direction(direction),
		}
	}

	outcomes := app.Services().Imports.ImportBatch(ctx, inputs)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tINSERTED\tUPDATED\tFAILED\tERROR")
	failures := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failures++
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", outcome.Input.FileName, outcome.Err)
			continue
		}
		s := outcome.Summary
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t\n", outcome.Input.FileName, s.FileType, s.Inserted, s.Updated, s.Failed)
		for _, msg := range s.Errors {
			fmt.Fprintf(w, "\t\t\t\t\t%s\n", msg)
		}
	}
	w.Flush()

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(outcomes))
	}
	return nil
}
