// Package formatcode maps document attributes to the 2-digit voucher format
// codes (格式代號) defined by Taiwan's tax authority for the declaration media
// feed, and recovers direction/type from allowance codes found in imported
// spreadsheets.
package formatcode

import "github.com/yuchialin/vat-filing/internal/domain/entity"

// Invoice format codes by direction.
const (
	InManualTriplicate  = "21" // 進項 三聯式
	InOtherVoucher      = "22" // 進項 載有稅額之其他憑證
	InAllowanceTri      = "23" // 進項 三聯式/電子發票折讓
	InAllowanceOther    = "24" // 進項 其他折讓
	InElectronic        = "25" // 進項 三聯式收銀機/電子發票
	OutManualTriplicate = "31" // 銷項 三聯式
	OutDuplicate        = "32" // 銷項 二聯式
	OutAllowanceTri     = "33" // 銷項 三聯式/電子發票折讓
	OutAllowanceOther   = "34" // 銷項 其他折讓
	OutElectronic       = "35" // 銷項 三聯式收銀機/電子發票
)

// invoiceCodes maps invoice type to its [in, out] code pair.
var invoiceCodes = map[entity.InvoiceType][2]string{
	entity.InvoiceTypeManualTriplicate:       {InManualTriplicate, OutManualTriplicate},
	entity.InvoiceTypeManualDuplicate:        {InOtherVoucher, OutDuplicate},
	entity.InvoiceTypeElectronic:             {InElectronic, OutElectronic},
	entity.InvoiceTypeCashRegisterDuplicate:  {InOtherVoucher, OutDuplicate},
	entity.InvoiceTypeCashRegisterTriplicate: {InElectronic, OutElectronic},
}

// ForInvoice resolves the format code for an invoice. Unknown or missing
// types fall back to the defaults the authority expects for each direction:
// 21 for purchases, 35 for sales.
func ForInvoice(dir entity.Direction, invoiceType entity.InvoiceType) string {
	if pair, ok := invoiceCodes[invoiceType]; ok {
		if dir == entity.DirectionOut {
			return pair[1]
		}
		return pair[0]
	}
	if dir == entity.DirectionOut {
		return OutElectronic
	}
	return InManualTriplicate
}

// ForAllowance resolves the format code for an allowance. The triplicate
// family (三聯式折讓, 電子發票折讓) uses 23/33; every other type uses 24/34.
func ForAllowance(dir entity.Direction, allowanceType entity.AllowanceType) string {
	triplicate := allowanceType == entity.AllowanceTypeTriplicate ||
		allowanceType == entity.AllowanceTypeElectronic
	if dir == entity.DirectionOut {
		if triplicate {
			return OutAllowanceTri
		}
		return OutAllowanceOther
	}
	if triplicate {
		return InAllowanceTri
	}
	return InAllowanceOther
}

// reverseAllowance recovers (direction, type) from the four allowance codes.
// Electronic feeds carry codes rather than type names, so the triplicate
// family resolves to the electronic member.
var reverseAllowance = map[string]struct {
	dir entity.Direction
	typ entity.AllowanceType
}{
	InAllowanceTri:    {entity.DirectionIn, entity.AllowanceTypeElectronic},
	InAllowanceOther:  {entity.DirectionIn, entity.AllowanceTypeDuplicate},
	OutAllowanceTri:   {entity.DirectionOut, entity.AllowanceTypeElectronic},
	OutAllowanceOther: {entity.DirectionOut, entity.AllowanceTypeDuplicate},
}

// ReverseAllowance maps an allowance format code back to its direction and
// allowance type. ok is false for any code outside {23, 24, 33, 34}.
func ReverseAllowance(code string) (entity.Direction, entity.AllowanceType, bool) {
	entry, ok := reverseAllowance[code]
	if !ok {
		return "", "", false
	}
	return entry.dir, entry.typ, true
}

// IsAllowanceCode reports whether the code is one of the four allowance
// format codes.
func IsAllowanceCode(code string) bool {
	_, ok := reverseAllowance[code]
	return ok
}
