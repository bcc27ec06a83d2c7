// Package report renders the two government upload artifacts for a filing
// period: the fixed-width .TXT media feed, one row per confirmed document,
// and the 112-field pipe-delimited .TET_U declaration line. Both read
// confirmed records only and are safe to run concurrently with imports.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/formatcode"
	"github.com/yuchialin/vat-filing/internal/domain/period"
)

// txtRowWidth is the published row length of the media feed.
const txtRowWidth = 81

// TxtGenerator renders the .TXT media feed for one client and period.
type TxtGenerator struct {
	clients    port.ClientRepository
	invoices   port.InvoiceRepository
	allowances port.AllowanceRepository
	ranges     port.InvoiceRangeRepository
	logger     *zap.Logger
}

// NewTxtGenerator creates a TxtGenerator.
func NewTxtGenerator(
	clients port.ClientRepository,
	invoices port.InvoiceRepository,
	allowances port.AllowanceRepository,
	ranges port.InvoiceRangeRepository,
	logger *zap.Logger,
) *TxtGenerator {
	return &TxtGenerator{
		clients:    clients,
		invoices:   invoices,
		allowances: allowances,
		ranges:     ranges,
		logger:     logger,
	}
}

// Generate renders one row per confirmed document of the period, plus one
// disclosure row per invoice range with unused numbers remaining. An empty
// confirmed set yields an empty string, not an error. Row order is
// deterministic for a fixed input set: invoices before allowances, each
// sorted by format code, serial code, then date.
func (g *TxtGenerator) Generate(ctx context.Context, clientID, periodCode string) (string, error) {
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

	type docRow struct {
		formatCode string
		serial     string
		date       string
		render     func(seq int) string
	}
	var rows []docRow

	for _, inv := range invoices {
		inv := inv
		code := formatcode.ForInvoice(inv.InOrOut, inv.Fields.Type)
		rows = append(rows, docRow{
			formatCode: code,
			serial:     inv.SerialCode,
			date:       inv.Fields.Date,
			render: func(seq int) string {
				return g.invoiceRow(client, periodCode, code, inv, seq)
			},
		})
	}
	for _, alw := range allowances {
		alw := alw
		code := formatcode.ForAllowance(alw.InOrOut, alw.Fields.Type)
		rows = append(rows, docRow{
			formatCode: code,
			serial:     alw.SerialCode,
			date:       alw.Fields.Date,
			render: func(seq int) string {
				return g.allowanceRow(client, periodCode, code, alw, seq)
			},
		})
	}

	// invoices stay ahead of allowances: the append order above already
	// separates them, so a stable sort on the remaining keys keeps it
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].formatCode != rows[j].formatCode {
			return rows[i].formatCode < rows[j].formatCode
		}
		if rows[i].serial != rows[j].serial {
			return rows[i].serial < rows[j].serial
		}
		return rows[i].date < rows[j].date
	})

	var b strings.Builder
	seq := 0
	for _, row := range rows {
		seq++
		b.WriteString(row.render(seq))
		b.WriteByte('\n')
	}
	for _, rng := range ranges {
		first, ok := rng.FirstUnused()
		if !ok {
			continue
		}
		seq++
		b.WriteString(g.unusedRangeRow(client, periodCode, rng, first, seq))
		b.WriteByte('\n')
	}

	g.logger.Info("txt report generated",
		zap.String("client_id", clientID),
		zap.String("period", periodCode),
		zap.Int("rows", seq))
	return b.String(), nil
}

func (g *TxtGenerator) invoiceRow(client *entity.Client, periodCode, code string, inv *entity.Invoice, seq int) string {
	r := newFixedRow(txtRowWidth)
	r.put(1, 2, code)
	r.put(3, 11, padRight(client.TaxRegistrationNumber, 9))
	r.put(12, 16, periodCode)
	r.put(17, 23, zeroPadInt(seq, 7))
	r.put(24, 33, padRight(inv.SerialCode, 10))
	r.put(34, 41, padRight(inv.Fields.BuyerTaxID, 8))
	r.put(42, 49, padRight(inv.Fields.SellerTaxID, 8))
	r.put(50, 61, zeroPad(inv.Fields.SalesAmount, 12))
	r.put(62, 62, taxTypeMark(inv.Fields.TaxType))
	r.put(63, 72, zeroPad(inv.Fields.TaxAmount, 10))
	if inv.InOrOut == entity.DirectionIn {
		r.put(73, 73, inv.Fields.DeductionCode)
	}
	return r.String()
}

func (g *TxtGenerator) allowanceRow(client *entity.Client, periodCode, code string, alw *entity.Allowance, seq int) string {
	r := newFixedRow(txtRowWidth)
	r.put(1, 2, code)
	r.put(3, 11, padRight(client.TaxRegistrationNumber, 9))
	r.put(12, 16, periodCode)
	r.put(17, 23, zeroPadInt(seq, 7))
	r.put(24, 33, padRight(alw.SerialCode, 10))
	r.put(34, 41, padRight(alw.Fields.BuyerTaxID, 8))
	r.put(42, 49, padRight(alw.Fields.SellerTaxID, 8))
	r.put(50, 61, zeroPad(alw.Fields.Amount, 12))
	r.put(62, 62, "1")
	r.put(63, 72, zeroPad(alw.Fields.TaxAmount, 10))
	if alw.InOrOut == entity.DirectionIn {
		r.put(73, 73, alw.Fields.DeductionCode)
	}
	return r.String()
}

// unusedRangeRow discloses the unused remainder of a declared paper invoice
// range: document number = track + first unused number, buyer region = last
// number of the range, amounts zero, tax-type mark B.
func (g *TxtGenerator) unusedRangeRow(client *entity.Client, periodCode string, rng *entity.InvoiceRange, first string, seq int) string {
	r := newFixedRow(txtRowWidth)
	r.put(1, 2, formatcode.ForInvoice(entity.DirectionOut, rng.InvoiceType))
	r.put(3, 11, padRight(client.TaxRegistrationNumber, 9))
	r.put(12, 16, periodCode)
	r.put(17, 23, zeroPadInt(seq, 7))
	r.put(24, 33, padRight(rng.Track+first, 10))
	r.put(34, 41, padRight(rng.RangeTo, 8))
	r.put(50, 61, zeroPad(0, 12))
	r.put(62, 62, "B")
	r.put(63, 72, zeroPad(0, 10))
	return r.String()
}

func taxTypeMark(t entity.TaxType) string {
	switch t {
	case entity.TaxTypeZeroRate:
		return "2"
	case entity.TaxTypeExempt:
		return "3"
	default:
		return "1"
	}
}
