package reconcile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// LoadRows extracts the cell grid from an uploaded feed. Modern platform
// exports are .xlsx; older bookkeeping systems still hand over .xls books or
// Big5-encoded delimited text, so the loaders are tried in that order
// regardless of the file extension.
func LoadRows(raw []byte, filename string) ([][]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnsupportedFileFormat, filename)
	}

	if rows, err := loadXLSX(raw); err == nil {
		return rows, nil
	}
	if rows, err := loadXLS(raw); err == nil {
		return rows, nil
	}
	if rows, err := loadDelimited(raw); err == nil {
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %s is not a workbook or delimited feed", ErrUnsupportedFileFormat, filename)
}

func loadXLSX(raw []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}
	return rows, nil
}

func loadXLS(raw []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, fmt.Errorf("xls book has no sheets")
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, row := range sheet.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xls sheet is empty")
	}
	return rows, nil
}

// loadDelimited handles legacy text feeds: Big5 or UTF-8 bytes, one record
// per line, pipe/comma/tab/semicolon separated.
func loadDelimited(raw []byte) ([][]string, error) {
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, "\uFEFF")
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("no data lines")
	}

	delim := detectDelimiter(lines[0])
	if delim == 0 {
		return nil, fmt.Errorf("no delimiter found")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no records")
	}
	return rows, nil
}

func decodeText(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), traditionalchinese.Big5.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode big5: %w", err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("payload is neither utf-8 nor big5")
	}
	return string(decoded), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func detectDelimiter(headerLine string) rune {
	best, bestCount := rune(0), 1
	for _, d := range []rune{'|', ',', '\t', ';'} {
		if n := strings.Count(headerLine, string(d)); n+1 > bestCount {
			best, bestCount = d, n+1
		}
	}
	return best
}
