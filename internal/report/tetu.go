package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/formatcode"
	"github.com/yuchialin/vat-filing/internal/domain/period"
)

// DeclarationConfig carries the caller-supplied declaration fields that do
// not live on any document: taxpayer identity, manual adjustment figures,
// and the declarer block copied verbatim into the trailing fields.
type DeclarationConfig struct {
	TaxpayerID            string `json:"taxpayer_id"`
	TaxRegistrationNumber string `json:"tax_registration_number"`
	DeclarationCode       string `json:"declaration_code"` // defaults to 401
	FilingKind            string `json:"filing_kind"`
	BusinessName          string `json:"business_name"`
	IndustryCode          string `json:"industry_code"`
	HeadOfficeTaxID       string `json:"head_office_tax_id"`
	ConsolidatedMark      string `json:"consolidated_mark"`
	ChannelMark           string `json:"channel_mark"`

	NoInvoiceSales   int64 `json:"no_invoice_sales"`
	NoInvoiceTax     int64 `json:"no_invoice_tax"`
	CustomsAmount    int64 `json:"customs_amount"`
	CustomsTax       int64 `json:"customs_tax"`
	CarryForwardTax  int64 `json:"carry_forward_tax"`
	ManualAdjustment int64 `json:"manual_adjustment"` // signed; split across the add/subtract fields
	RefundMethod     int   `json:"refund_method"`     // 0 none, 1 remit, 2 check

	DeclarerName            string `json:"declarer_name"`
	DeclarerIDNumber        string `json:"declarer_id_number"`
	DeclarerPhone           string `json:"declarer_phone"`
	AgentName               string `json:"agent_name"`
	AgentRegistrationNumber string `json:"agent_registration_number"`
	FilingDate              string `json:"filing_date"` // ROC yyyMMdd
}

// salesBucket accumulates one output-side row of the declaration.
type salesBucket struct {
	sales    int64
	tax      int64
	zeroRate int64
}

func (b *salesBucket) add(o salesBucket) {
	b.sales += o.sales
	b.tax += o.tax
	b.zeroRate += o.zeroRate
}

func (b *salesBucket) subtract(o salesBucket) {
	b.sales -= o.sales
	b.tax -= o.tax
	b.zeroRate -= o.zeroRate
}

// inputBucket accumulates one deduction row, split expense vs fixed asset
// by deduction code.
type inputBucket struct {
	expense       int64
	expenseTax    int64
	fixedAsset    int64
	fixedAssetTax int64
}

func (b *inputBucket) add(o inputBucket) {
	b.expense += o.expense
	b.expenseTax += o.expenseTax
	b.fixedAsset += o.fixedAsset
	b.fixedAssetTax += o.fixedAssetTax
}

func (b *inputBucket) subtract(o inputBucket) {
	b.expense -= o.expense
	b.expenseTax -= o.expenseTax
	b.fixedAsset -= o.fixedAsset
	b.fixedAssetTax -= o.fixedAssetTax
}

func (b *inputBucket) accumulate(amount, tax int64, deductionCode string) {
	if deductionCode == entity.DeductionFixedAsset || deductionCode == entity.DeductionFixedAssetNonDeduct {
		b.fixedAsset += amount
		b.fixedAssetTax += tax
		return
	}
	b.expense += amount
	b.expenseTax += tax
}

// TetUGenerator renders the .TET_U declaration line for one client and
// period.
type TetUGenerator struct {
	clients    port.ClientRepository
	invoices   port.InvoiceRepository
	allowances port.AllowanceRepository
	ranges     port.InvoiceRangeRepository
	logger     *zap.Logger
}

// NewTetUGenerator creates a TetUGenerator.
func NewTetUGenerator(
	clients port.ClientRepository,
	invoices port.InvoiceRepository,
	allowances port.AllowanceRepository,
	ranges port.InvoiceRangeRepository,
	logger *zap.Logger,
) *TetUGenerator {
	return &TetUGenerator{
		clients:    clients,
		invoices:   invoices,
		allowances: allowances,
		ranges:     ranges,
		logger:     logger,
	}
}

// Generate aggregates the period's confirmed documents into the 112-field
// declaration line. The field count never varies: a period with no
// documents renders zero-valued totals.
func (g *TetUGenerator) Generate(ctx context.Context, clientID, periodCode string, cfg DeclarationConfig) (string, error) {
	client, err := g.clients.GetByID(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("get client %s: %w", clientID, err)
	}
	if client == nil {
		return "", fmt.Errorf("%w: %s", port.ErrClientNotFound, clientID)
	}
	p, err := period.FromCanonical(periodCode)
	if err != nil {
		return "", err
	}
	periodCode = p.Canonical()

	invoices, err := g.invoices.ListByClientPeriodStatus(ctx, clientID, periodCode, entity.DocumentStatusConfirmed)
	if err != nil {
		return "", fmt.Errorf("list invoices: %w", err)
	}
	allowances, err := g.allowances.ListByClientPeriodStatus(ctx, clientID, periodCode, entity.DocumentStatusConfirmed)
	if err != nil {
		return "", fmt.Errorf("list allowances: %w", err)
	}
	ranges, err := g.ranges.ListByClientPeriod(ctx, clientID, periodCode)
	if err != nil {
		return "", fmt.Errorf("list invoice ranges: %w", err)
	}

	// output side
	var salesTri, salesElec, salesDup, salesReturns salesBucket
	var exemptSales int64
	outputInvoiceCount := 0

	// input side
	var inTri, inElec, inOther, inReturns inputBucket
	var deductibleInputTax, nonDeductibleInputTax int64

	for _, inv := range invoices {
		if inv.InOrOut == entity.DirectionOut {
			outputInvoiceCount++
			var row salesBucket
			switch inv.Fields.TaxType {
			case entity.TaxTypeZeroRate:
				row.zeroRate = inv.Fields.SalesAmount
			case entity.TaxTypeExempt:
				exemptSales += inv.Fields.SalesAmount
			default:
				row.sales = inv.Fields.SalesAmount
				row.tax = inv.Fields.TaxAmount
			}
			switch formatcode.ForInvoice(inv.InOrOut, inv.Fields.Type) {
			case formatcode.OutManualTriplicate:
				salesTri.add(row)
			case formatcode.OutElectronic:
				salesElec.add(row)
			default:
				salesDup.add(row)
			}
			continue
		}

		var row inputBucket
		row.accumulate(inv.Fields.SalesAmount, inv.Fields.TaxAmount, inv.Fields.DeductionCode)
		switch formatcode.ForInvoice(inv.InOrOut, inv.Fields.Type) {
		case formatcode.InElectronic:
			inElec.add(row)
		case formatcode.InOtherVoucher:
			inOther.add(row)
		default:
			inTri.add(row)
		}
		if deductible(inv.Fields.DeductionCode) {
			deductibleInputTax += inv.Fields.TaxAmount
		} else {
			nonDeductibleInputTax += inv.Fields.TaxAmount
		}
	}

	for _, alw := range allowances {
		if alw.InOrOut == entity.DirectionOut {
			salesReturns.add(salesBucket{sales: alw.Fields.Amount, tax: alw.Fields.TaxAmount})
			continue
		}
		var row inputBucket
		row.accumulate(alw.Fields.Amount, alw.Fields.TaxAmount, alw.Fields.DeductionCode)
		inReturns.add(row)
		if deductible(alw.Fields.DeductionCode) {
			deductibleInputTax -= alw.Fields.TaxAmount
		}
	}

	noInvoice := salesBucket{sales: cfg.NoInvoiceSales, tax: cfg.NoInvoiceTax}
	var salesTotal salesBucket
	salesTotal.add(salesTri)
	salesTotal.add(salesElec)
	salesTotal.add(salesDup)
	salesTotal.add(noInvoice)
	salesTotal.subtract(salesReturns)

	customs := inputBucket{expense: cfg.CustomsAmount, expenseTax: cfg.CustomsTax}
	var inputTotal inputBucket
	inputTotal.add(inTri)
	inputTotal.add(inElec)
	inputTotal.add(inOther)
	inputTotal.add(customs)
	inputTotal.subtract(inReturns)
	deductibleInputTax += cfg.CustomsTax

	outputTax := salesTotal.tax
	adjustAdd, adjustSub := int64(0), int64(0)
	if cfg.ManualAdjustment >= 0 {
		adjustAdd = cfg.ManualAdjustment
	} else {
		adjustSub = -cfg.ManualAdjustment
	}
	subtotal := outputTax - deductibleInputTax - cfg.CarryForwardTax + cfg.ManualAdjustment
	payable, credit := int64(0), int64(0)
	if subtotal >= 0 {
		payable = subtotal
	} else {
		credit = -subtotal
	}
	refundCeiling := salesTotal.zeroRate*5/100 + inputTotal.fixedAssetTax
	refundable := int64(0)
	if cfg.RefundMethod != 0 {
		refundable = credit
		if refundable > refundCeiling {
			refundable = refundCeiling
		}
	}

	unusedCount := 0
	for _, rng := range ranges {
		unusedCount += rng.UnusedCount()
	}

	fields := newTetuFields()
	set := func(slot int, v string) { fields[slot-1] = v }
	setAmount := func(slot int, v int64) { fields[slot-1] = strconv.FormatInt(v, 10) }
	setSales := func(slot int, b salesBucket) {
		setAmount(slot, b.sales)
		setAmount(slot+1, b.tax)
		setAmount(slot+2, b.zeroRate)
	}
	setInput := func(slot int, b inputBucket) {
		setAmount(slot, b.expense)
		setAmount(slot+1, b.expenseTax)
		setAmount(slot+2, b.fixedAsset)
		setAmount(slot+3, b.fixedAssetTax)
	}

	declarationCode := cfg.DeclarationCode
	if declarationCode == "" {
		declarationCode = "401"
	}
	taxRegistration := cfg.TaxRegistrationNumber
	if taxRegistration == "" {
		taxRegistration = client.TaxRegistrationNumber
	}
	taxpayerID := cfg.TaxpayerID
	if taxpayerID == "" {
		taxpayerID = client.TaxID
	}
	businessName := cfg.BusinessName
	if businessName == "" {
		businessName = client.Name
	}

	set(fDeclarationCode, declarationCode)
	set(fTaxRegistration, taxRegistration)
	set(fTaxpayerID, taxpayerID)
	set(fPeriod, periodCode)
	set(fFilingKind, cfg.FilingKind)
	set(fBusinessName, businessName)
	set(fIndustryCode, cfg.IndustryCode)
	set(fHeadOfficeID, cfg.HeadOfficeTaxID)
	set(fConsolidated, cfg.ConsolidatedMark)
	set(fChannelMark, cfg.ChannelMark)

	setSales(fSalesTriplicate, salesTri)
	setSales(fSalesElectronic, salesElec)
	setSales(fSalesDuplicate, salesDup)
	setSales(fSalesNoInvoice, noInvoice)
	setSales(fSalesReturns, salesReturns)
	setSales(fSalesTotal, salesTotal)
	setAmount(fSalesExempt, exemptSales)
	setAmount(fSalesGrandTotal, salesTotal.sales+salesTotal.zeroRate+exemptSales)
	setAmount(fSalesSpecialRate, 0)

	setInput(fInputTriplicate, inTri)
	setInput(fInputElectronic, inElec)
	setInput(fInputOtherVoucher, inOther)
	setInput(fInputCustoms, customs)
	setInput(fInputReturns, inReturns)
	setInput(fInputTotal, inputTotal)
	setAmount(fInputGrossAmount, inputTotal.expense+inputTotal.fixedAsset)
	setAmount(fInputNonDeduct, nonDeductibleInputTax)

	setAmount(fOutputTax, outputTax)
	setAmount(fDeductibleInputTax, deductibleInputTax)
	setAmount(fCarryForward, cfg.CarryForwardTax)
	setAmount(fAdjustmentAdd, adjustAdd)
	setAmount(fAdjustmentSubtract, adjustSub)
	setAmount(fSubtotal, subtotal)
	setAmount(fPayable, payable)
	setAmount(fCreditNext, credit)
	setAmount(fRefundCeiling, refundCeiling)
	setAmount(fRefundable, refundable)
	setAmount(fCreditAfterRefund, credit-refundable)
	setAmount(fRefundMethod, int64(cfg.RefundMethod))
	setAmount(fZeroRateTotal, salesTotal.zeroRate)
	setAmount(fFixedAssetTax, inputTotal.fixedAssetTax)

	setAmount(fOutputInvoiceCount, int64(outputInvoiceCount))
	setAmount(fUnusedCount, int64(unusedCount))
	setAmount(fVoidedCount, 0)

	set(fDeclarerName, cfg.DeclarerName)
	set(fDeclarerID, cfg.DeclarerIDNumber)
	set(fDeclarerPhone, cfg.DeclarerPhone)
	set(fAgentName, cfg.AgentName)
	set(fAgentRegistration, cfg.AgentRegistrationNumber)
	if cfg.AgentRegistrationNumber != "" {
		set(fAgencyMark, "1")
	}
	set(fFilingDate, cfg.FilingDate)

	g.logger.Info("tetu declaration generated",
		zap.String("client_id", clientID),
		zap.String("period", periodCode),
		zap.Int64("output_tax", outputTax),
		zap.Int64("payable", payable),
		zap.Int64("refundable", refundable))
	return strings.Join(fields, "|"), nil
}

// newTetuFields returns the 112 slots prefilled with their empty values:
// header and declarer text regions blank, numeric regions "0", end mark Y.
func newTetuFields() []string {
	fields := make([]string, tetuFieldCount)
	for i := range fields {
		slot := i + 1
		switch {
		case slot <= fChannelMark:
			fields[i] = ""
		case slot >= fDeclarerName && slot <= fTextReservedEnd:
			fields[i] = ""
		case slot == fEndMark:
			fields[i] = "Y"
		default:
			fields[i] = "0"
		}
	}
	return fields
}

func deductible(code string) bool {
	return code == entity.DeductionExpense || code == entity.DeductionFixedAsset
}
