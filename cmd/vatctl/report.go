package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuchialin/vat-filing/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate declaration artifacts for a client period",
}

var reportTxtCmd = &cobra.Command{
	Use:   "txt",
	Short: "Generate the fixed-width media feed (.TXT)",
	Example: `  vatctl report txt --client client-1 --period 11305
  vatctl report txt --client client-1 --period 11305 --out 11305.TXT`,
	RunE: runReportTxt,
}

var reportTetuCmd = &cobra.Command{
	Use:   "tetu",
	Short: "Generate the 401 declaration file (.TET_U)",
	Example: `  vatctl report tetu --client client-1 --period 11305 \
    --declaration-file declaration.json --out 11305.TET_U`,
	RunE: runReportTetu,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportTxtCmd)
	reportCmd.AddCommand(reportTetuCmd)

	for _, cmd := range []*cobra.Command{reportTxtCmd, reportTetuCmd} {
		cmd.Flags().String("client", "", "Client ID")
		cmd.Flags().String("period", "", "Period code (ROC yyyMM)")
		cmd.Flags().String("out", "", "Write the artifact to this path instead of stdout")
		cmd.MarkFlagRequired("client")
		cmd.MarkFlagRequired("period")
	}

	reportTetuCmd.Flags().String("declaration-file", "", "JSON file with the declaration header and adjustments")
	reportTetuCmd.Flags().Int("refund-method", 0, "Refund method: 0 none, 1 remit, 2 check")
	reportTetuCmd.Flags().Int64("carry-forward", 0, "Credit carried forward from the previous period")
}

func runReportTxt(cmd *cobra.Command, args []string) error {
	clientID, _ := cmd.Flags().GetString("client")
	periodCode, _ := cmd.Flags().GetString("period")

	ctx := cmd.Context()
	app, logger, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer logger.Sync()

	content, err := app.Services().Reports.GenerateTxt(ctx, clientID, periodCode)
	if err != nil {
		return err
	}
	return writeArtifact(cmd, content)
}

func runReportTetu(cmd *cobra.Command, args []string) error {
	clientID, _ := cmd.Flags().GetString("client")
	periodCode, _ := cmd.Flags().GetString("period")
	declarationFile, _ := cmd.Flags().GetString("declaration-file")

	var cfg report.DeclarationConfig
	if declarationFile != "" {
		raw, err := os.ReadFile(declarationFile)
		if err != nil {
			return fmt.Errorf("read declaration file: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("parse declaration file: %w", err)
		}
	}
	if cmd.Flags().Changed("refund-method") {
		cfg.RefundMethod, _ = cmd.Flags().GetInt("refund-method")
	}
	if cmd.Flags().Changed("carry-forward") {
		cfg.CarryForwardTax, _ = cmd.Flags().GetInt64("carry-forward")
	}

	ctx := cmd.Context()
	app, logger, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer logger.Sync()

	content, err := app.Services().Reports.GenerateTetU(ctx, clientID, periodCode, cfg)
	if err != nil {
		return err
	}
	return writeArtifact(cmd, content)
}

func writeArtifact(cmd *cobra.Command, content string) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", out, len(content))
	return nil
}
