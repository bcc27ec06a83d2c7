package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/pkg/utils"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage clients",
}

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a client",
	Example: `  vatctl client add --name "甲公司" --tax-id 12345675 --tax-reg 400112345`,
	RunE:  runClientAdd,
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(clientAddCmd)

	clientAddCmd.Flags().String("name", "", "Client display name")
	clientAddCmd.Flags().String("tax-id", "", "Unified business number (統一編號, 8 digits)")
	clientAddCmd.Flags().String("tax-reg", "", "Tax registration number (稅籍編號, 9 digits)")
	clientAddCmd.Flags().String("firm", "", "Firm ID the client belongs to")
	clientAddCmd.MarkFlagRequired("name")
	clientAddCmd.MarkFlagRequired("tax-id")
	clientAddCmd.MarkFlagRequired("tax-reg")
}

func runClientAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	taxID, _ := cmd.Flags().GetString("tax-id")
	taxReg, _ := cmd.Flags().GetString("tax-reg")
	firmID, _ := cmd.Flags().GetString("firm")

	if err := utils.ValidateTaxID(taxID); err != nil {
		return err
	}
	if err := utils.ValidateTaxRegistrationNumber(taxReg); err != nil {
		return err
	}

	ctx := cmd.Context()
	app, logger, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer logger.Sync()

	clients := app.Repositories().Clients

	existing, err := clients.GetByTaxID(ctx, firmID, taxID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("client with tax ID %s already exists: %s", taxID, existing.ID)
	}

	client := &entity.Client{
		ID:                    uuid.New().String(),
		FirmID:                firmID,
		Name:                  name,
		TaxID:                 taxID,
		TaxRegistrationNumber: taxReg,
	}
	if err := clients.Create(ctx, client); err != nil {
		return err
	}

	fmt.Printf("Client registered: %s (%s)\n", client.ID, client.Name)
	return nil
}
