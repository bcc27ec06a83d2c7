package reconcile

import (
	"strings"
	"unicode"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/unicode/norm"
)

// Logical fields resolvable from feed headers. Keyword lists cover the
// header spellings seen across the e-invoice platform exports and the legacy
// bookkeeping feeds; matching runs on normalized text so full-width and
// punctuated variants collapse together.
const (
	colSerial          = "serial"
	colOriginalSerial  = "original_serial"
	colDate            = "date"
	colDocStatus       = "doc_status"
	colBuyerID         = "buyer_id"
	colBuyerName       = "buyer_name"
	colSellerID        = "seller_id"
	colSellerName      = "seller_name"
	colSalesAmount     = "sales_amount"
	colTaxAmount       = "tax_amount"
	colTotalAmount     = "total_amount"
	colInvoiceType     = "invoice_type"
	colAllowanceType   = "allowance_type"
	colTaxType         = "tax_type"
	colFormatCode      = "format_code"
	colDeductionCode   = "deduction_code"
	colAccountCode     = "account_code"
	colSummary         = "summary"
)

type columnSpec struct {
	field    string
	keywords []string
}

// noFuzzyFields are resolved by the exact and containment passes only. The
// original-serial column decides invoice-vs-allowance detection, and
// "發票號碼" fuzzy-matches "原發票號碼" too easily.
var noFuzzyFields = map[string]bool{
	colOriginalSerial: true,
}

var invoiceColumnSpecs = []columnSpec{
	{colSerial, []string{"發票號碼", "字軌發票號碼", "發票字軌號碼", "invoice number"}},
	{colDate, []string{"發票日期", "開立日期", "日期"}},
	{colDocStatus, []string{"發票狀態", "狀態"}},
	{colBuyerID, []string{"買方統一編號", "買方統編", "買受人統一編號", "買受人統編"}},
	{colBuyerName, []string{"買方名稱", "買受人名稱", "買方公司名稱"}},
	{colSellerID, []string{"賣方統一編號", "賣方統編", "銷售人統一編號", "營業人統一編號"}},
	{colSellerName, []string{"賣方名稱", "銷售人名稱", "賣方公司名稱"}},
	{colSalesAmount, []string{"銷售額", "未稅金額", "不含稅金額", "應稅銷售額", "金額"}},
	{colTaxAmount, []string{"稅額", "營業稅額", "營業稅"}},
	{colTotalAmount, []string{"總計", "含稅金額", "發票金額", "總金額"}},
	{colInvoiceType, []string{"發票類別", "發票種類", "票種"}},
	{colTaxType, []string{"課稅別", "課稅別代號", "課稅區分"}},
	{colFormatCode, []string{"格式代號", "格式"}},
	{colDeductionCode, []string{"扣抵代號", "扣抵別"}},
	{colAccountCode, []string{"會計科目", "科目代號", "科目"}},
}

var allowanceColumnSpecs = []columnSpec{
	{colSerial, []string{"折讓單號碼", "折讓證明單號碼", "折讓單號"}},
	{colOriginalSerial, []string{"原發票號碼", "原始發票號碼", "沖抵發票號碼"}},
	{colDate, []string{"折讓日期", "開立日期", "日期"}},
	{colDocStatus, []string{"折讓單狀態", "狀態"}},
	{colBuyerID, []string{"買方統一編號", "買方統編", "買受人統一編號", "買受人統編"}},
	{colBuyerName, []string{"買方名稱", "買受人名稱", "買方公司名稱"}},
	{colSellerID, []string{"賣方統一編號", "賣方統編", "銷售人統一編號", "營業人統一編號"}},
	{colSellerName, []string{"賣方名稱", "銷售人名稱", "賣方公司名稱"}},
	{colSalesAmount, []string{"折讓金額", "未稅金額", "不含稅金額", "金額"}},
	{colTaxAmount, []string{"稅額", "營業稅額", "折讓稅額"}},
	{colAllowanceType, []string{"折讓類別", "折讓種類"}},
	{colTaxType, []string{"課稅別", "課稅別代號"}},
	{colFormatCode, []string{"格式代號", "格式"}},
	{colDeductionCode, []string{"扣抵代號", "扣抵別"}},
	{colSummary, []string{"摘要", "備註", "折讓原因"}},
}

// normalizeHeader folds a header cell for matching: NFKC (full-width forms
// to ASCII), lowercase, and everything that is not a letter or digit
// removed.
func normalizeHeader(s string) string {
	folded := norm.NFKC.String(s)
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// resolveColumns assigns one header index per logical field. Three passes:
// exact normalized equality, containment, then fuzzy bag-of-bigrams match
// guarded by rune overlap so unrelated headers cannot be claimed. Earlier
// specs claim columns first, so identity fields sit before free-text ones.
func resolveColumns(header []string, specs []columnSpec) map[string]int {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeHeader(cell)
	}

	resolved := make(map[string]int, len(specs))
	claimed := make(map[int]bool, len(header))

	assign := func(field string, idx int) {
		resolved[field] = idx
		claimed[idx] = true
	}

	// exact
	for _, spec := range specs {
		if _, done := resolved[spec.field]; done {
			continue
		}
		for _, kw := range spec.keywords {
			kwNorm := normalizeHeader(kw)
			for i, cell := range normalized {
				if !claimed[i] && cell == kwNorm {
					assign(spec.field, i)
					break
				}
			}
			if _, done := resolved[spec.field]; done {
				break
			}
		}
	}

	// containment
	for _, spec := range specs {
		if _, done := resolved[spec.field]; done {
			continue
		}
		for _, kw := range spec.keywords {
			kwNorm := normalizeHeader(kw)
			if len([]rune(kwNorm)) < 2 {
				continue
			}
			for i, cell := range normalized {
				if claimed[i] || cell == "" {
					continue
				}
				if strings.Contains(cell, kwNorm) {
					assign(spec.field, i)
					break
				}
			}
			if _, done := resolved[spec.field]; done {
				break
			}
		}
	}

	// fuzzy
	for _, spec := range specs {
		if _, done := resolved[spec.field]; done {
			continue
		}
		if noFuzzyFields[spec.field] {
			continue
		}
		keys := make([]string, 0, len(spec.keywords))
		for _, kw := range spec.keywords {
			keys = append(keys, normalizeHeader(kw))
		}
		cm := closestmatch.New(keys, []int{2, 3})
		for i, cell := range normalized {
			if claimed[i] || cell == "" {
				continue
			}
			match := cm.Closest(cell)
			if match != "" && runeOverlap(cell, match)*2 >= len([]rune(match)) {
				assign(spec.field, i)
				break
			}
		}
	}

	return resolved
}

// runeOverlap counts distinct runes present in both strings.
func runeOverlap(a, b string) int {
	seen := make(map[rune]bool)
	for _, r := range a {
		seen[r] = true
	}
	count := 0
	for _, r := range b {
		if seen[r] {
			count++
			seen[r] = false
		}
	}
	return count
}

// cellAt safely extracts a trimmed cell from a row.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
