package entity

import (
	"encoding/json"
	"time"
)

// Allowance is a credit/debit note (折讓單) adjusting a previously issued
// invoice. It references its original invoice weakly, by serial code within
// the same client; OriginalInvoiceID is filled only after a successful link
// and stays empty when the referenced invoice is not in the store.
type Allowance struct {
	ID                    string          `json:"id"`
	FirmID                string          `json:"firm_id"`
	ClientID              string          `json:"client_id"`
	StorageRef            string          `json:"storage_ref"`
	FileName              string          `json:"file_name"`
	InOrOut               Direction       `json:"in_or_out"`
	Status                DocumentStatus  `json:"status"`
	SerialCode            string          `json:"allowance_serial_code"`
	OriginalInvoiceSerial string          `json:"original_invoice_serial_code"`
	OriginalInvoiceID     string          `json:"original_invoice_id"`
	PeriodCode            string          `json:"period_code"`
	PeriodID              string          `json:"period_id"`
	Fields                AllowanceFields `json:"fields"`
	Confidence            ConfidenceMap   `json:"confidence"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Linked reports whether the allowance has been attached to its original
// invoice.
func (a *Allowance) Linked() bool {
	return a.OriginalInvoiceID != ""
}

// AllowanceItem is one line of an allowance's item breakdown.
type AllowanceItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	Amount      int64   `json:"amount"`
	TaxAmount   int64   `json:"tax_amount"`
}

// AllowanceFields is the structured data extracted from a source allowance,
// with the same passthrough behavior as InvoiceFields.
type AllowanceFields struct {
	Type          AllowanceType   `json:"type"`
	Date          string          `json:"date"`
	SellerTaxID   string          `json:"seller_tax_id"`
	SellerName    string          `json:"seller_name"`
	BuyerTaxID    string          `json:"buyer_tax_id"`
	BuyerName     string          `json:"buyer_name"`
	Amount        int64           `json:"amount"`
	TaxAmount     int64           `json:"tax_amount"`
	DeductionCode string          `json:"deduction_code"`
	Summary       string          `json:"summary"`
	Items         []AllowanceItem `json:"items,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var allowanceFieldKeys = []string{
	"type", "date", "seller_tax_id", "seller_name", "buyer_tax_id", "buyer_name",
	"amount", "tax_amount", "deduction_code", "summary", "items",
}

type allowanceFieldsAlias AllowanceFields

// MarshalJSON merges the named fields with the passthrough bag; named fields
// win when a key appears in both.
func (f AllowanceFields) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(allowanceFieldsAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(f.Extra)+len(allowanceFieldKeys))
	for k, v := range f.Extra {
		merged[k] = v
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the named fields and keeps unrecognized keys in Extra.
func (f *AllowanceFields) UnmarshalJSON(data []byte) error {
	var known allowanceFieldsAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range allowanceFieldKeys {
		delete(raw, k)
	}
	*f = AllowanceFields(known)
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}
