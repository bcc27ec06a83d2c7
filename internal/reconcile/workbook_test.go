package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/traditionalchinese"
)

func TestLoadRowsXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"發票號碼", "發票日期", "銷售額"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"AB12345678", "113/05/20", 100}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := LoadRows(buf.Bytes(), "feed.xlsx")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "發票號碼", rows[0][0])
	assert.Equal(t, "AB12345678", rows[1][0])
}

func TestLoadRowsBig5Delimited(t *testing.T) {
	text := "發票號碼|發票日期|銷售額|稅額\nAB12345678|113/05/20|100|5\n"
	raw, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	rows, err := LoadRows(raw, "legacy.txt")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"發票號碼", "發票日期", "銷售額", "稅額"}, rows[0])
	assert.Equal(t, "AB12345678", rows[1][0])
	assert.Equal(t, "113/05/20", rows[1][1])
}

func TestLoadRowsUTF8CSV(t *testing.T) {
	raw := []byte("發票號碼,發票日期,銷售額\nAB12345678,2024-05-20,100\n\nAB12345679,2024-05-21,200\n")
	rows, err := LoadRows(raw, "feed.csv")
	require.NoError(t, err)
	// Blank lines are dropped before parsing.
	require.Len(t, rows, 3)
	assert.Equal(t, "AB12345679", rows[2][0])
}

func TestLoadRowsUnsupported(t *testing.T) {
	_, err := LoadRows(nil, "empty.bin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFileFormat))

	_, err = LoadRows([]byte("justonefield"), "junk.bin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFileFormat))
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, '|', detectDelimiter("a|b|c"))
	assert.Equal(t, ',', detectDelimiter("a,b,c"))
	assert.Equal(t, '\t', detectDelimiter("a\tb\tc"))
	assert.Equal(t, rune(0), detectDelimiter("plain"))
}
