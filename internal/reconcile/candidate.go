package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/formatcode"
)

// invoiceCandidate is one parsed invoice row, ready for upsert.
type invoiceCandidate struct {
	SerialCode string
	Direction  entity.Direction
	Voided     bool
	Fields     entity.InvoiceFields
}

// allowanceCandidate is one parsed allowance row, ready for upsert.
type allowanceCandidate struct {
	SerialCode            string
	OriginalInvoiceSerial string
	Direction             entity.Direction
	Voided                bool
	Fields                entity.AllowanceFields
}

func parseInvoiceRow(row []string, cols map[string]int, clientTaxID string, defaultDir entity.Direction) (*invoiceCandidate, error) {
	serial := normalizeSerial(fieldAt(row, cols, colSerial))
	if serial == "" {
		return nil, fmt.Errorf("%w: missing invoice serial code", ErrInvalidRow)
	}

	date, err := parseDate(fieldAt(row, cols, colDate))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}

	sales, tax, total, err := parseAmountTriple(
		fieldAt(row, cols, colSalesAmount),
		fieldAt(row, cols, colTaxAmount),
		fieldAt(row, cols, colTotalAmount),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}

	sellerID := fieldAt(row, cols, colSellerID)
	buyerID := fieldAt(row, cols, colBuyerID)

	cand := &invoiceCandidate{
		SerialCode: serial,
		Direction:  deriveDirection(sellerID, buyerID, clientTaxID, defaultDir),
		Voided:     isVoided(fieldAt(row, cols, colDocStatus)),
		Fields: entity.InvoiceFields{
			Type:          mapInvoiceType(fieldAt(row, cols, colInvoiceType)),
			Date:          date,
			SellerTaxID:   sellerID,
			SellerName:    fieldAt(row, cols, colSellerName),
			BuyerTaxID:    buyerID,
			BuyerName:     fieldAt(row, cols, colBuyerName),
			SalesAmount:   sales,
			TaxAmount:     tax,
			TotalAmount:   total,
			TaxType:       mapTaxType(fieldAt(row, cols, colTaxType)),
			DeductionCode: mapDeductionCode(fieldAt(row, cols, colDeductionCode)),
			AccountCode:   fieldAt(row, cols, colAccountCode),
		},
	}
	return cand, nil
}

func parseAllowanceRow(row []string, cols map[string]int, clientTaxID string, defaultDir entity.Direction) (*allowanceCandidate, error) {
	date, err := parseDate(fieldAt(row, cols, colDate))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}

	amountCell := fieldAt(row, cols, colSalesAmount)
	if amountCell == "" {
		return nil, fmt.Errorf("%w: missing allowance amount", ErrInvalidRow)
	}
	amount, err := parseAmount(amountCell)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	tax, err := parseAmount(fieldAt(row, cols, colTaxAmount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}

	sellerID := fieldAt(row, cols, colSellerID)
	buyerID := fieldAt(row, cols, colBuyerID)
	dir := deriveDirection(sellerID, buyerID, clientTaxID, "")

	allowanceType := mapAllowanceType(fieldAt(row, cols, colAllowanceType))
	if code := fieldAt(row, cols, colFormatCode); code != "" {
		if codeDir, codeType, ok := formatcode.ReverseAllowance(code); ok {
			if allowanceType == "" {
				allowanceType = codeType
			}
			if dir == "" {
				dir = codeDir
			}
		}
	}
	if dir == "" {
		dir = defaultDir
	}

	cand := &allowanceCandidate{
		SerialCode:            normalizeSerial(fieldAt(row, cols, colSerial)),
		OriginalInvoiceSerial: normalizeSerial(fieldAt(row, cols, colOriginalSerial)),
		Direction:             dir,
		Voided:                isVoided(fieldAt(row, cols, colDocStatus)),
		Fields: entity.AllowanceFields{
			Type:          allowanceType,
			Date:          date,
			SellerTaxID:   sellerID,
			SellerName:    fieldAt(row, cols, colSellerName),
			BuyerTaxID:    buyerID,
			BuyerName:     fieldAt(row, cols, colBuyerName),
			Amount:        amount,
			TaxAmount:     tax,
			DeductionCode: mapDeductionCode(fieldAt(row, cols, colDeductionCode)),
			Summary:       fieldAt(row, cols, colSummary),
		},
	}
	return cand, nil
}

func fieldAt(row []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok {
		return ""
	}
	return cellAt(row, idx)
}

// deriveDirection resolves 進項/銷項 by matching the client's tax id against
// the document's parties: the client selling means an outbound document, the
// client buying means inbound. Neither matching falls back to def.
func deriveDirection(sellerID, buyerID, clientTaxID string, def entity.Direction) entity.Direction {
	if clientTaxID != "" {
		if sellerID == clientTaxID {
			return entity.DirectionOut
		}
		if buyerID == clientTaxID {
			return entity.DirectionIn
		}
	}
	return def
}

// normalizeSerial folds a document number: full-width forms to ASCII, upper
// case, separators removed ("ab-12345678 " becomes "AB12345678").
func normalizeSerial(s string) string {
	folded := norm.NFKC.String(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006/1/2", "2006.01.02", "20060102"}

// parseDate normalizes the date spellings seen in feeds to ISO form:
// Gregorian layouts, ROC dates ("113/05/20", "1130520"), and Excel serial
// numbers. An empty cell parses to an empty string.
func parseDate(s string) (string, error) {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	if t, ok := parseROCDate(s); ok {
		return t.Format("2006-01-02"), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 20000 && f < 60000 {
		return excelSerialToDate(f).Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unparseable date %q", s)
}

func parseROCDate(s string) (time.Time, bool) {
	normalized := strings.NewReplacer("/", "-", ".", "-", "年", "-", "月", "-", "日", "").Replace(s)
	parts := strings.Split(normalized, "-")
	if len(parts) == 1 && len(s) == 7 {
		// ROC yyymmdd
		parts = []string{s[:3], s[3:5], s[5:7]}
	}
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	day, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if year <= 0 || year >= 1500 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// excelSerialToDate converts an Excel date serial (epoch 1899-12-30).
func excelSerialToDate(serial float64) time.Time {
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(serial)
	frac := serial - float64(days)
	return base.AddDate(0, 0, days).Add(time.Duration(frac * 24 * float64(time.Hour)))
}

// parseAmount reads a monetary cell into whole NT dollars. Accepts
// thousands separators, currency marks, and parenthesised negatives; empty
// cells are zero.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return 0, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	replacer := strings.NewReplacer("NT$", "", "$", "", ",", "", " ", "", "元", "")
	s = replacer.Replace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	if negative {
		f = -f
	}
	return int64(math.Round(f)), nil
}

// parseAmountTriple completes (sales, tax, total) from whichever columns the
// feed carries: any missing member is derived from the other two, and a row
// with neither sales nor total is rejected.
func parseAmountTriple(salesCell, taxCell, totalCell string) (sales, tax, total int64, err error) {
	if salesCell == "" && totalCell == "" {
		return 0, 0, 0, fmt.Errorf("missing amount columns")
	}
	if sales, err = parseAmount(salesCell); err != nil {
		return 0, 0, 0, err
	}
	if tax, err = parseAmount(taxCell); err != nil {
		return 0, 0, 0, err
	}
	if total, err = parseAmount(totalCell); err != nil {
		return 0, 0, 0, err
	}
	switch {
	case totalCell == "":
		total = sales + tax
	case salesCell == "":
		sales = total - tax
	case taxCell == "" && total > sales:
		tax = total - sales
	}
	return sales, tax, total, nil
}

func isVoided(status string) bool {
	s := strings.TrimSpace(status)
	return strings.Contains(s, "作廢") || strings.Contains(s, "註銷") || strings.EqualFold(s, "void")
}

func mapInvoiceType(s string) entity.InvoiceType {
	s = strings.TrimSpace(norm.NFKC.String(s))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "電子"):
		return entity.InvoiceTypeElectronic
	case strings.Contains(s, "收銀") && strings.Contains(s, "三聯"):
		return entity.InvoiceTypeCashRegisterTriplicate
	case strings.Contains(s, "收銀"):
		return entity.InvoiceTypeCashRegisterDuplicate
	case strings.Contains(s, "三聯"):
		return entity.InvoiceTypeManualTriplicate
	case strings.Contains(s, "二聯"):
		return entity.InvoiceTypeManualDuplicate
	default:
		return ""
	}
}

func mapAllowanceType(s string) entity.AllowanceType {
	s = strings.TrimSpace(norm.NFKC.String(s))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "電子"):
		return entity.AllowanceTypeElectronic
	case strings.Contains(s, "三聯"):
		return entity.AllowanceTypeTriplicate
	case strings.Contains(s, "二聯"):
		return entity.AllowanceTypeDuplicate
	default:
		return ""
	}
}

func mapTaxType(s string) entity.TaxType {
	s = strings.TrimSpace(norm.NFKC.String(s))
	switch {
	case s == "" || s == "1" || strings.Contains(s, "應稅"):
		return entity.TaxTypeTaxable
	case s == "2" || strings.Contains(s, "零稅"):
		return entity.TaxTypeZeroRate
	case s == "3" || strings.Contains(s, "免稅"):
		return entity.TaxTypeExempt
	default:
		return entity.TaxTypeTaxable
	}
}

func mapDeductionCode(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	switch s {
	case entity.DeductionExpense, entity.DeductionFixedAsset,
		entity.DeductionExpenseNonDeduct, entity.DeductionFixedAssetNonDeduct:
		return s
	default:
		return entity.DeductionExpense
	}
}
