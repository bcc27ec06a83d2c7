package report

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

func newTetUGenerator(clients *stubClientRepo, invoices *stubInvoiceRepo, allowances *stubAllowanceRepo, ranges *stubRangeRepo) *TetUGenerator {
	return NewTetUGenerator(clients, invoices, allowances, ranges, zap.NewNop())
}

// field returns the 1-based slot value of a declaration line.
func field(line string, slot int) string {
	return strings.Split(line, "|")[slot-1]
}

func fieldInt(t *testing.T, line string, slot int) int64 {
	t.Helper()
	v, err := strconv.ParseInt(field(line, slot), 10, 64)
	require.NoError(t, err, "slot %d", slot)
	return v
}

func TestTetUFieldCountInvariant(t *testing.T) {
	ctx := context.Background()

	t.Run("zero documents", func(t *testing.T) {
		gen := newTetUGenerator(
			&stubClientRepo{clients: []*entity.Client{testReportClient()}},
			&stubInvoiceRepo{},
			&stubAllowanceRepo{},
			&stubRangeRepo{},
		)
		line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{})
		require.NoError(t, err)
		assert.Len(t, strings.Split(line, "|"), 112)
		assert.Equal(t, "0", field(line, fOutputTax))
		assert.Equal(t, "Y", field(line, fEndMark))
	})

	t.Run("many documents", func(t *testing.T) {
		var invoices []*entity.Invoice
		for i := 0; i < 40; i++ {
			invoices = append(invoices, confirmedInvoice(
				"inv-"+strconv.Itoa(i), "AB"+strconv.Itoa(10000000+i),
				entity.DirectionOut, entity.InvoiceTypeElectronic, 1000, 50))
		}
		gen := newTetUGenerator(
			&stubClientRepo{clients: []*entity.Client{testReportClient()}},
			&stubInvoiceRepo{invoices: invoices},
			&stubAllowanceRepo{},
			&stubRangeRepo{},
		)
		line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{})
		require.NoError(t, err)
		assert.Len(t, strings.Split(line, "|"), 112)
		assert.Equal(t, int64(40*50), fieldInt(t, line, fOutputTax))
	})
}

func TestTetUHeaderAndDeclarer(t *testing.T) {
	ctx := context.Background()
	gen := newTetUGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{},
		&stubAllowanceRepo{},
		&stubRangeRepo{},
	)

	cfg := DeclarationConfig{
		FilingKind:              "1",
		IndustryCode:            "691001",
		DeclarerName:            "王小明",
		DeclarerIDNumber:        "A123456789",
		DeclarerPhone:           "02-23456789",
		AgentName:               "誠信記帳士事務所",
		AgentRegistrationNumber: "10612345",
		FilingDate:              "1130715",
	}
	line, err := gen.Generate(ctx, "client-1", "11305", cfg)
	require.NoError(t, err)

	assert.Equal(t, "401", field(line, fDeclarationCode), "declaration code defaults to 401")
	assert.Equal(t, "400112345", field(line, fTaxRegistration), "falls back to the client's registration")
	assert.Equal(t, "12345678", field(line, fTaxpayerID))
	assert.Equal(t, "11305", field(line, fPeriod))
	assert.Equal(t, "大安商行", field(line, fBusinessName))
	assert.Equal(t, "王小明", field(line, fDeclarerName))
	assert.Equal(t, "A123456789", field(line, fDeclarerID))
	assert.Equal(t, "10612345", field(line, fAgentRegistration))
	assert.Equal(t, "1", field(line, fAgencyMark))
	assert.Equal(t, "1130715", field(line, fFilingDate))
}

func TestTetUBucketMath(t *testing.T) {
	ctx := context.Background()

	outElec := confirmedInvoice("inv-1", "AB00000001", entity.DirectionOut, entity.InvoiceTypeElectronic, 100000, 5000)
	outTri := confirmedInvoice("inv-2", "AB00000002", entity.DirectionOut, entity.InvoiceTypeManualTriplicate, 20000, 1000)

	inElec := confirmedInvoice("inv-3", "CD00000001", entity.DirectionIn, entity.InvoiceTypeElectronic, 30000, 1500)
	inElec.Fields.DeductionCode = entity.DeductionExpense
	inFixedAsset := confirmedInvoice("inv-4", "CD00000002", entity.DirectionIn, entity.InvoiceTypeManualTriplicate, 10000, 500)
	inFixedAsset.Fields.DeductionCode = entity.DeductionFixedAsset
	inNonDeduct := confirmedInvoice("inv-5", "CD00000003", entity.DirectionIn, entity.InvoiceTypeManualDuplicate, 4000, 200)
	inNonDeduct.Fields.DeductionCode = entity.DeductionExpenseNonDeduct

	salesReturn := confirmedAllowance("alw-1", "D0001", entity.DirectionOut, entity.AllowanceTypeElectronic, 1000, 50)
	purchaseReturn := confirmedAllowance("alw-2", "D0002", entity.DirectionIn, entity.AllowanceTypeElectronic, 2000, 100)
	purchaseReturn.Fields.DeductionCode = entity.DeductionExpense

	gen := newTetUGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: []*entity.Invoice{outElec, outTri, inElec, inFixedAsset, inNonDeduct}},
		&stubAllowanceRepo{allowances: []*entity.Allowance{salesReturn, purchaseReturn}},
		&stubRangeRepo{},
	)

	line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{})
	require.NoError(t, err)

	// output buckets
	assert.Equal(t, int64(20000), fieldInt(t, line, fSalesTriplicate))
	assert.Equal(t, int64(1000), fieldInt(t, line, fSalesTriplicate+1))
	assert.Equal(t, int64(100000), fieldInt(t, line, fSalesElectronic))
	assert.Equal(t, int64(5000), fieldInt(t, line, fSalesElectronic+1))
	assert.Equal(t, int64(1000), fieldInt(t, line, fSalesReturns))
	assert.Equal(t, int64(50), fieldInt(t, line, fSalesReturns+1))
	assert.Equal(t, int64(119000), fieldInt(t, line, fSalesTotal))
	assert.Equal(t, int64(5950), fieldInt(t, line, fSalesTotal+1))
	assert.Equal(t, int64(119000), fieldInt(t, line, fSalesGrandTotal))

	// input buckets: the fixed-asset purchase lands in the triplicate
	// bucket's fixed-asset columns
	assert.Equal(t, int64(0), fieldInt(t, line, fInputTriplicate))
	assert.Equal(t, int64(10000), fieldInt(t, line, fInputTriplicate+2))
	assert.Equal(t, int64(500), fieldInt(t, line, fInputTriplicate+3))
	assert.Equal(t, int64(30000), fieldInt(t, line, fInputElectronic))
	assert.Equal(t, int64(1500), fieldInt(t, line, fInputElectronic+1))
	assert.Equal(t, int64(4000), fieldInt(t, line, fInputOtherVoucher))
	assert.Equal(t, int64(2000), fieldInt(t, line, fInputReturns))
	assert.Equal(t, int64(32000), fieldInt(t, line, fInputTotal))
	assert.Equal(t, int64(1600), fieldInt(t, line, fInputTotal+1))
	assert.Equal(t, int64(42000), fieldInt(t, line, fInputGrossAmount))
	assert.Equal(t, int64(200), fieldInt(t, line, fInputNonDeduct))

	// tax computation
	assert.Equal(t, int64(5950), fieldInt(t, line, fOutputTax))
	assert.Equal(t, int64(1900), fieldInt(t, line, fDeductibleInputTax))
	assert.Equal(t, int64(4050), fieldInt(t, line, fSubtotal))
	assert.Equal(t, int64(4050), fieldInt(t, line, fPayable))
	assert.Equal(t, int64(0), fieldInt(t, line, fCreditNext))
	assert.Equal(t, int64(0), fieldInt(t, line, fRefundable))

	// counts
	assert.Equal(t, int64(2), fieldInt(t, line, fOutputInvoiceCount))
}

func TestTetURefundVsPayableExclusivity(t *testing.T) {
	ctx := context.Background()

	zeroRate := confirmedInvoice("inv-1", "AB00000001", entity.DirectionOut, entity.InvoiceTypeElectronic, 100000, 0)
	zeroRate.Fields.TaxType = entity.TaxTypeZeroRate
	fixedAsset := confirmedInvoice("inv-2", "CD00000001", entity.DirectionIn, entity.InvoiceTypeElectronic, 40000, 2000)
	fixedAsset.Fields.DeductionCode = entity.DeductionFixedAsset

	gen := newTetUGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{invoices: []*entity.Invoice{zeroRate, fixedAsset}},
		&stubAllowanceRepo{},
		&stubRangeRepo{},
	)

	t.Run("refund requested", func(t *testing.T) {
		line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{RefundMethod: 1})
		require.NoError(t, err)

		assert.Equal(t, int64(100000), fieldInt(t, line, fZeroRateTotal))
		assert.Equal(t, int64(-2000), fieldInt(t, line, fSubtotal))
		assert.Equal(t, int64(0), fieldInt(t, line, fPayable))
		assert.Equal(t, int64(2000), fieldInt(t, line, fCreditNext))
		assert.Equal(t, int64(100000*5/100+2000), fieldInt(t, line, fRefundCeiling))
		assert.Equal(t, int64(2000), fieldInt(t, line, fRefundable))
		assert.Equal(t, int64(0), fieldInt(t, line, fCreditAfterRefund))
		assert.Equal(t, "1", field(line, fRefundMethod))
	})

	t.Run("no refund requested keeps the credit", func(t *testing.T) {
		line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{})
		require.NoError(t, err)

		assert.Equal(t, int64(0), fieldInt(t, line, fPayable))
		assert.Equal(t, int64(0), fieldInt(t, line, fRefundable))
		assert.Equal(t, int64(2000), fieldInt(t, line, fCreditAfterRefund))
	})
}

func TestTetUAdjustmentSignSplit(t *testing.T) {
	ctx := context.Background()
	gen := newTetUGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{},
		&stubAllowanceRepo{},
		&stubRangeRepo{},
	)

	t.Run("positive", func(t *testing.T) {
		line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{ManualAdjustment: 400})
		require.NoError(t, err)
		assert.Equal(t, int64(400), fieldInt(t, line, fAdjustmentAdd))
		assert.Equal(t, int64(0), fieldInt(t, line, fAdjustmentSubtract))
		assert.Equal(t, int64(400), fieldInt(t, line, fPayable))
	})

	t.Run("negative", func(t *testing.T) {
		line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{ManualAdjustment: -300})
		require.NoError(t, err)
		assert.Equal(t, int64(0), fieldInt(t, line, fAdjustmentAdd))
		assert.Equal(t, int64(300), fieldInt(t, line, fAdjustmentSubtract))
		assert.Equal(t, int64(300), fieldInt(t, line, fCreditNext))
	})
}

func TestTetUUnusedRangeCount(t *testing.T) {
	ctx := context.Background()
	gen := newTetUGenerator(
		&stubClientRepo{clients: []*entity.Client{testReportClient()}},
		&stubInvoiceRepo{},
		&stubAllowanceRepo{},
		&stubRangeRepo{ranges: []*entity.InvoiceRange{
			{
				ID: "rng-1", ClientID: "client-1", PeriodCode: "11305",
				InvoiceType: entity.InvoiceTypeElectronic,
				Track:       "AB", RangeFrom: "10000000", RangeTo: "10000099",
				UsedThrough: "10000049",
			},
		}},
	)

	line, err := gen.Generate(ctx, "client-1", "11305", DeclarationConfig{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), fieldInt(t, line, fUnusedCount))
}

func TestTetUClientNotFound(t *testing.T) {
	ctx := context.Background()
	gen := newTetUGenerator(&stubClientRepo{}, &stubInvoiceRepo{}, &stubAllowanceRepo{}, &stubRangeRepo{})

	_, err := gen.Generate(ctx, "missing", "11305", DeclarationConfig{})
	require.ErrorIs(t, err, port.ErrClientNotFound)
}
