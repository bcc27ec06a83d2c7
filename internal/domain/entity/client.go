package entity

import "time"

// Client is a business the accounting firm files VAT for. TaxID is the
// 8-digit 統一編號 used for direction matching during import; the 9-digit
// TaxRegistrationNumber (稅籍編號) identifies the client in declaration files.
type Client struct {
	ID                    string    `json:"id"`
	FirmID                string    `json:"firm_id"`
	Name                  string    `json:"name"`
	TaxID                 string    `json:"tax_id"`
	TaxRegistrationNumber string    `json:"tax_registration_number"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
