package reconcile

import (
	"fmt"
	"strings"

	"github.com/yuchialin/vat-filing/internal/domain/formatcode"
)

// FileType classifies an uploaded feed.
type FileType string

const (
	FileTypeInvoice   FileType = "invoice"
	FileTypeAllowance FileType = "allowance"
)

// headerAnchors are normalized fragments that identify a title row.
var headerAnchors = []string{"發票號碼", "折讓單號", "格式代號", "買方統一編號", "買受人統一編號"}

// FindHeaderRow returns the index of the first row that looks like a column
// title row, scanning at most the first ten rows (platform exports often
// carry a report title and query criteria above the table). Returns -1 when
// nothing qualifies.
func FindHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			cellNorm := normalizeHeader(cell)
			for _, anchor := range headerAnchors {
				if strings.Contains(cellNorm, normalizeHeader(anchor)) {
					return i
				}
			}
		}
	}
	return -1
}

// DetectFileType classifies the feed and returns the resolved column map for
// that shape. An original-invoice-serial column marks an allowance feed, as
// does a format-code column whose values are all allowance codes. Otherwise
// the sheet must expose an invoice serial plus an amount column to count as
// an invoice feed.
func DetectFileType(header []string, data [][]string) (FileType, map[string]int, error) {
	allowanceCols := resolveColumns(header, allowanceColumnSpecs)
	if _, ok := allowanceCols[colOriginalSerial]; ok {
		return FileTypeAllowance, allowanceCols, nil
	}

	invoiceCols := resolveColumns(header, invoiceColumnSpecs)
	if fcIdx, ok := invoiceCols[colFormatCode]; ok {
		if codes := sampleColumn(data, fcIdx, 20); len(codes) > 0 && allAllowanceCodes(codes) {
			return FileTypeAllowance, allowanceCols, nil
		}
	}

	_, hasSerial := invoiceCols[colSerial]
	_, hasSales := invoiceCols[colSalesAmount]
	_, hasTotal := invoiceCols[colTotalAmount]
	if hasSerial && (hasSales || hasTotal) {
		return FileTypeInvoice, invoiceCols, nil
	}

	return "", nil, fmt.Errorf("%w: columns match neither invoice nor allowance shape", ErrUnsupportedFileFormat)
}

func sampleColumn(data [][]string, idx, limit int) []string {
	var values []string
	for _, row := range data {
		if len(values) >= limit {
			break
		}
		if v := cellAt(row, idx); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func allAllowanceCodes(codes []string) bool {
	for _, code := range codes {
		if !formatcode.IsAllowanceCode(code) {
			return false
		}
	}
	return true
}
