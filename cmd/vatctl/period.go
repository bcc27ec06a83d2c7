package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Manage period locks and filing state",
}

var periodLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock a period against edits",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPeriodTransition(cmd, "lock")
	},
}

var periodUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Reopen a locked period",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPeriodTransition(cmd, "unlock")
	},
}

var periodFileCmd = &cobra.Command{
	Use:   "file",
	Short: "Mark a locked period as filed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPeriodTransition(cmd, "file")
	},
}

func init() {
	rootCmd.AddCommand(periodCmd)
	periodCmd.AddCommand(periodLockCmd, periodUnlockCmd, periodFileCmd)

	for _, cmd := range []*cobra.Command{periodLockCmd, periodUnlockCmd, periodFileCmd} {
		cmd.Flags().String("client", "", "Client ID")
		cmd.Flags().String("period", "", "Period code (ROC yyyMM)")
		cmd.MarkFlagRequired("client")
		cmd.MarkFlagRequired("period")
	}
	periodLockCmd.Flags().String("firm", "", "Firm ID stamped on a newly created period record")
}

func runPeriodTransition(cmd *cobra.Command, action string) error {
	clientID, _ := cmd.Flags().GetString("client")
	periodCode, _ := cmd.Flags().GetString("period")

	ctx := cmd.Context()
	app, logger, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer logger.Sync()

	periods := app.Services().Periods

	var record *entity.TaxFilingPeriod
	switch action {
	case "lock":
		firmID, _ := cmd.Flags().GetString("firm")
		record, err = periods.Lock(ctx, firmID, clientID, periodCode)
	case "unlock":
		record, err = periods.Unlock(ctx, clientID, periodCode)
	case "file":
		record, err = periods.MarkFiled(ctx, clientID, periodCode)
	default:
		err = fmt.Errorf("unknown period action: %s", action)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Period %s for client %s is now %s\n", record.PeriodCode, record.ClientID, record.Status)
	return nil
}
