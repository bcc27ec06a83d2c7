package report

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

func testReportClient() *entity.Client {
	return &entity.Client{
		ID:                    "client-1",
		FirmID:                "firm-1",
		Name:                  "大安商行",
		TaxID:                 "12345678",
		TaxRegistrationNumber: "400112345",
	}
}

func confirmedInvoice(id, serial string, dir entity.Direction, typ entity.InvoiceType, sales, tax int64) *entity.Invoice {
	return &entity.Invoice{
		ID:         id,
		FirmID:     "firm-1",
		ClientID:   "client-1",
		InOrOut:    dir,
		Status:     entity.DocumentStatusConfirmed,
		SerialCode: serial,
		PeriodCode: "11305",
		Fields: entity.InvoiceFields{
			Type:        typ,
			Date:        "2024-05-02",
			SellerTaxID: "22334455",
			BuyerTaxID:  "12345678",
			SalesAmount: sales,
			TaxAmount:   tax,
			TotalAmount: sales + tax,
			TaxType:     entity.TaxTypeTaxable,
		},
	}
}

func confirmedAllowance(id, serial string, dir entity.Direction, typ entity.AllowanceType, amount, tax int64) *entity.Allowance {
	return &entity.Allowance{
		ID:         id,
		FirmID:     "firm-1",
		ClientID:   "client-1",
		InOrOut:    dir,
		Status:     entity.DocumentStatusConfirmed,
		SerialCode: serial,
		PeriodCode: "11305",
		Fields: entity.AllowanceFields{
			Type:        typ,
			Date:        "2024-05-20",
			SellerTaxID: "22334455",
			BuyerTaxID:  "12345678",
			Amount:      amount,
			TaxAmount:   tax,
		},
	}
}

func newTxtGenerator(clients *stubClientRepo, invoices *stubInvoiceRepo, allowances *stubAllowanceRepo, ranges *stubRangeRepo) *TxtGenerator {
	return NewTxtGenerator(clients, invoices, allowances, ranges, zap.NewNop())
}

func TestTxtGeneratorFormatCodes(t *testing.T) {
	ctx := context.Background()
	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: []*entity.Invoice{
			confirmedInvoice("inv-1", "AB12345678", entity.DirectionOut, entity.InvoiceTypeElectronic, 1000, 50),
		}},
		&stubAllowanceRepo{allowances: []*entity.Allowance{
			confirmedAllowance("alw-1", "D0001", entity.DirectionOut, entity.AllowanceTypeElectronic, 200, 10),
		}},
		&stubRangeRepo{},
	)

	out, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)

	lines := splitRows(out)
	require.Len(t, lines, 2)

	var invoiceRow, allowanceRow string
	for _, line := range lines {
		switch line[:2] {
		case "35":
			invoiceRow = line
		case "33":
			allowanceRow = line
		}
	}
	require.NotEmpty(t, invoiceRow, "the outbound e-invoice must render as format 35")
	require.NotEmpty(t, allowanceRow, "the outbound e-invoice allowance must render as format 33")
}

func TestTxtGeneratorRowLayout(t *testing.T) {
	ctx := context.Background()
	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: []*entity.Invoice{
			confirmedInvoice("inv-1", "AB12345678", entity.DirectionOut, entity.InvoiceTypeElectronic, 1000, 50),
		}},
		&stubAllowanceRepo{},
		&stubRangeRepo{},
	)

	out, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)

	lines := splitRows(out)
	require.Len(t, lines, 1)
	row := lines[0]
	require.Len(t, row, 81)

	assert.Equal(t, "35", row[0:2])
	assert.Equal(t, "400112345", row[2:11])
	assert.Equal(t, "11305", row[11:16])
	assert.Equal(t, "0000001", row[16:23])
	assert.Equal(t, "AB12345678", row[23:33])
	assert.Equal(t, "12345678", row[33:41], "buyer tax id")
	assert.Equal(t, "22334455", row[41:49], "seller tax id")
	assert.Equal(t, "000000001000", row[49:61])
	assert.Equal(t, "1", row[61:62], "taxable mark")
	assert.Equal(t, "0000000050", row[62:72])
	assert.Equal(t, " ", row[72:73], "output rows carry no deduction code")
	assert.Equal(t, strings.Repeat(" ", 8), row[73:81])
}

func TestTxtGeneratorInputDeductionCode(t *testing.T) {
	ctx := context.Background()
	inv := confirmedInvoice("inv-1", "CD00000001", entity.DirectionIn, entity.InvoiceTypeManualTriplicate, 2000, 100)
	inv.Fields.DeductionCode = entity.DeductionExpense
	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: []*entity.Invoice{inv}},
		&stubAllowanceRepo{},
		&stubRangeRepo{},
	)

	out, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)

	row := splitRows(out)[0]
	assert.Equal(t, "21", row[0:2])
	assert.Equal(t, "1", row[72:73])
}

func TestTxtGeneratorRowCountAndCodes(t *testing.T) {
	ctx := context.Background()
	invoices := []*entity.Invoice{
		confirmedInvoice("inv-1", "AB00000001", entity.DirectionOut, entity.InvoiceTypeElectronic, 1000, 50),
		confirmedInvoice("inv-2", "AB00000002", entity.DirectionOut, entity.InvoiceTypeManualTriplicate, 2000, 100),
		confirmedInvoice("inv-3", "CD00000001", entity.DirectionIn, entity.InvoiceTypeManualDuplicate, 500, 25),
	}
	// non-confirmed documents stay out of the feed
	pending := confirmedInvoice("inv-4", "AB00000009", entity.DirectionOut, entity.InvoiceTypeElectronic, 9000, 450)
	pending.Status = entity.DocumentStatusProcessed
	invoices = append(invoices, pending)

	allowances := []*entity.Allowance{
		confirmedAllowance("alw-1", "D0001", entity.DirectionIn, entity.AllowanceTypeDuplicate, 300, 15),
	}

	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: invoices},
		&stubAllowanceRepo{allowances: allowances},
		&stubRangeRepo{},
	)

	out, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)

	lines := splitRows(out)
	require.Len(t, lines, 4, "confirmed invoices + confirmed allowances")
	for _, line := range lines {
		require.Len(t, line, 81)
		code := line[:2]
		assert.Contains(t, []string{"21", "22", "23", "24", "25", "31", "32", "33", "34", "35"}, code)
	}
}

func TestTxtGeneratorDeterministicMultiset(t *testing.T) {
	ctx := context.Background()
	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: []*entity.Invoice{
			confirmedInvoice("inv-2", "AB00000002", entity.DirectionOut, entity.InvoiceTypeElectronic, 2000, 100),
			confirmedInvoice("inv-1", "AB00000001", entity.DirectionOut, entity.InvoiceTypeElectronic, 1000, 50),
		}},
		&stubAllowanceRepo{allowances: []*entity.Allowance{
			confirmedAllowance("alw-1", "D0001", entity.DirectionOut, entity.AllowanceTypeElectronic, 200, 10),
		}},
		&stubRangeRepo{},
	)

	first, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)
	second, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)

	assert.Equal(t, maskedMultiset(first), maskedMultiset(second))
}

func TestTxtGeneratorUnusedRangeRow(t *testing.T) {
	ctx := context.Background()
	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{},
		&stubAllowanceRepo{},
		&stubRangeRepo{ranges: []*entity.InvoiceRange{
			{
				ID:          "rng-1",
				ClientID:    "client-1",
				PeriodCode:  "11305",
				InvoiceType: entity.InvoiceTypeElectronic,
				Track:       "AB",
				RangeFrom:   "10000000",
				RangeTo:     "10000099",
				UsedThrough: "10000049",
			},
			{
				// fully used, discloses nothing
				ID:          "rng-2",
				ClientID:    "client-1",
				PeriodCode:  "11305",
				InvoiceType: entity.InvoiceTypeElectronic,
				Track:       "AB",
				RangeFrom:   "10000100",
				RangeTo:     "10000149",
				UsedThrough: "10000149",
			},
		}},
	)

	out, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)

	lines := splitRows(out)
	require.Len(t, lines, 1)
	row := lines[0]
	assert.Equal(t, "35", row[0:2], "range disclosed as an outbound invoice of its type")
	assert.Equal(t, "AB10000050", row[23:33])
	assert.Equal(t, "10000099", row[33:41])
	assert.Equal(t, "000000000000", row[49:61])
	assert.Equal(t, "B", row[61:62])
}

func TestTxtGeneratorEmptyPeriod(t *testing.T) {
	ctx := context.Background()
	gen := newTxtGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{},
		&stubAllowanceRepo{},
		&stubRangeRepo{},
	)

	out, err := gen.Generate(ctx, "client-1", "11305")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTxtGeneratorClientNotFound(t *testing.T) {
	ctx := context.Background()
	gen := newTxtGenerator(&stubClientRepo{}, &stubInvoiceRepo{}, &stubAllowanceRepo{}, &stubRangeRepo{})

	_, err := gen.Generate(ctx, "missing", "11305")
	require.ErrorIs(t, err, port.ErrClientNotFound)
}

func splitRows(out string) []string {
	if out == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}

// maskedMultiset blanks the sequence-number region of every row and sorts,
// so comparisons ignore emission order.
func maskedMultiset(out string) []string {
	rows := splitRows(out)
	masked := make([]string, len(rows))
	for i, row := range rows {
		masked[i] = row[:16] + "XXXXXXX" + row[23:]
	}
	sort.Strings(masked)
	return masked
}
