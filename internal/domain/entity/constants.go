package entity

// Direction classifies a document relative to the filing client:
// purchases are 進項 (in), sales are 銷項 (out).
type Direction string

const (
	DirectionIn  Direction = "in"  // 進項
	DirectionOut Direction = "out" // 銷項
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// DocumentStatus is the review lifecycle shared by invoices and allowances.
// Only confirmed documents enter report generation.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusConfirmed  DocumentStatus = "confirmed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Valid reports whether the status is a known lifecycle state.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusProcessing, DocumentStatusProcessed,
		DocumentStatusConfirmed, DocumentStatusFailed:
		return true
	}
	return false
}

// InvoiceType values follow the voucher categories of the filing authority.
type InvoiceType string

const (
	InvoiceTypeManualTriplicate       InvoiceType = "手開三聯式"
	InvoiceTypeManualDuplicate        InvoiceType = "手開二聯式"
	InvoiceTypeElectronic             InvoiceType = "電子發票"
	InvoiceTypeCashRegisterDuplicate  InvoiceType = "二聯式收銀機"
	InvoiceTypeCashRegisterTriplicate InvoiceType = "三聯式收銀機"
)

// AllowanceType values follow the credit/debit note categories.
type AllowanceType string

const (
	AllowanceTypeTriplicate AllowanceType = "三聯式折讓"
	AllowanceTypeElectronic AllowanceType = "電子發票折讓"
	AllowanceTypeDuplicate  AllowanceType = "二聯式折讓"
)

// TaxType is the 課稅別 carried by each document.
type TaxType string

const (
	TaxTypeTaxable  TaxType = "taxable"   // 應稅
	TaxTypeZeroRate TaxType = "zero_rate" // 零稅率
	TaxTypeExempt   TaxType = "exempt"    // 免稅
)

// Deduction codes (扣抵代號) classify input-side documents. Codes 1 and 2 are
// deductible; 3 and 4 are their non-deductible counterparts.
const (
	DeductionExpense            = "1" // 進貨及費用，可扣抵
	DeductionFixedAsset         = "2" // 固定資產，可扣抵
	DeductionExpenseNonDeduct   = "3" // 進貨及費用，不可扣抵
	DeductionFixedAssetNonDeduct = "4" // 固定資產，不可扣抵
)

// PeriodStatus is the lifecycle of a TaxFilingPeriod.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusLocked PeriodStatus = "locked"
	PeriodStatusFiled  PeriodStatus = "filed"
)

// Editable reports whether document mutation is allowed under this status.
// Filed periods are as immutable as locked ones: the stored documents must
// keep matching the declaration that was submitted.
func (s PeriodStatus) Editable() bool {
	return s == PeriodStatusOpen || s == ""
}

// CanTransitionTo reports whether the status change is a legal transition:
// open and locked toggle freely, filing requires a locked period, and filed
// is terminal.
func (s PeriodStatus) CanTransitionTo(next PeriodStatus) bool {
	switch s {
	case PeriodStatusOpen:
		return next == PeriodStatusLocked
	case PeriodStatusLocked:
		return next == PeriodStatusOpen || next == PeriodStatusFiled
	default:
		return false
	}
}
