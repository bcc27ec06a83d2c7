// vatctl is the operator CLI for the VAT filing engine: feed imports,
// declaration artifacts, period transitions, and client registration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/config"
	"github.com/yuchialin/vat-filing/internal/container"
	"github.com/yuchialin/vat-filing/pkg/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "vatctl",
	Short:         "Operate the VAT filing engine from the command line",
	Long: `vatctl drives the bi-monthly VAT filing workflow: import reconciliation
feeds, generate the declaration artifacts (.TXT media feed and .TET_U
declaration), manage period locks, and register clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Path to the configuration file")
}

func main() {
	// Local .env overrides are optional.
	_ = gotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildApp loads configuration and wires the application graph with a
// console logger.
func buildApp(ctx context.Context) (*container.Container, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewDevelopmentLogger()
	if err != nil {
		return nil, nil, err
	}

	app, err := container.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}
