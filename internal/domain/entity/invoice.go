package entity

import (
	"encoding/json"
	"time"
)

// Invoice is a sales or purchase invoice (統一發票) owned by a client. The
// serial code is the government invoice number; it is unique per client when
// present, and may be empty for paper documents awaiting extraction or for
// records whose conflicting serial was dropped during import.
type Invoice struct {
	ID         string         `json:"id"`
	FirmID     string         `json:"firm_id"`
	ClientID   string         `json:"client_id"` // empty while an upload is unassigned
	StorageRef string         `json:"storage_ref"`
	FileName   string         `json:"file_name"`
	InOrOut    Direction      `json:"in_or_out"`
	Status     DocumentStatus `json:"status"`
	SerialCode string         `json:"invoice_serial_code"`
	PeriodCode string         `json:"period_code"`
	PeriodID   string         `json:"period_id"`
	Fields     InvoiceFields  `json:"fields"`
	Confidence ConfidenceMap  `json:"confidence"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// InvoiceFields is the structured data extracted from a source invoice. The
// named fields are the validated subset the filing engine depends on; any
// additional keys delivered by the extraction service are preserved verbatim
// in Extra and survive storage round trips unchanged.
type InvoiceFields struct {
	Type          InvoiceType `json:"type"`
	Date          string      `json:"date"`
	SellerTaxID   string      `json:"seller_tax_id"`
	SellerName    string      `json:"seller_name"`
	BuyerTaxID    string      `json:"buyer_tax_id"`
	BuyerName     string      `json:"buyer_name"`
	SalesAmount   int64       `json:"sales_amount"`
	TaxAmount     int64       `json:"tax_amount"`
	TotalAmount   int64       `json:"total_amount"`
	TaxType       TaxType     `json:"tax_type"`
	DeductionCode string      `json:"deduction_code"`
	AccountCode   string      `json:"account_code"`

	// Extra carries extraction keys outside the validated subset.
	Extra map[string]json.RawMessage `json:"-"`
}

// invoiceFieldKeys are the JSON keys owned by the named fields; everything
// else in an incoming object lands in Extra.
var invoiceFieldKeys = []string{
	"type", "date", "seller_tax_id", "seller_name", "buyer_tax_id", "buyer_name",
	"sales_amount", "tax_amount", "total_amount", "tax_type", "deduction_code",
	"account_code",
}

type invoiceFieldsAlias InvoiceFields

// MarshalJSON merges the named fields with the passthrough bag. Named fields
// win when a key appears in both.
func (f InvoiceFields) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(invoiceFieldsAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(f.Extra)+len(invoiceFieldKeys))
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

// UnmarshalJSON fills the named fields and catches every unrecognized key in
// Extra so re-marshalling reproduces the original object.
func (f *InvoiceFields) UnmarshalJSON(data []byte) error {
	var known invoiceFieldsAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range invoiceFieldKeys {
		delete(raw, k)
	}
	*f = InvoiceFields(known)
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}
