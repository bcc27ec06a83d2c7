package report

import (
	"context"
	"sort"

	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

// List-backed repository stubs. Report generation only reads, so the write
// methods are inert.

type stubClientRepo struct {
	clients []*entity.Client
}

func (s *stubClientRepo) Create(context.Context, *entity.Client) error { return nil }

func (s *stubClientRepo) GetByID(_ context.Context, id string) (*entity.Client, error) {
	for _, c := range s.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (s *stubClientRepo) GetByTaxID(_ context.Context, firmID, taxID string) (*entity.Client, error) {
	for _, c := range s.clients {
		if c.FirmID == firmID && c.TaxID == taxID {
			return c, nil
		}
	}
	return nil, nil
}

type stubInvoiceRepo struct {
	invoices []*entity.Invoice
}

func (s *stubInvoiceRepo) Create(context.Context, *entity.Invoice) error { return nil }
func (s *stubInvoiceRepo) Update(context.Context, *entity.Invoice) error { return nil }
func (s *stubInvoiceRepo) Delete(context.Context, string) error          { return nil }

func (s *stubInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, nil
}

func (s *stubInvoiceRepo) GetBySerialCode(_ context.Context, clientID, serial string) (*entity.Invoice, error) {
	for _, inv := range s.invoices {
		if inv.ClientID == clientID && serial != "" && inv.SerialCode == serial {
			return inv, nil
		}
	}
	return nil, nil
}

func (s *stubInvoiceRepo) ListByClientPeriodStatus(_ context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range s.invoices {
		if inv.ClientID != clientID || inv.PeriodCode != periodCode {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		out = append(out, inv)
	}
	// repositories return rows in id order; keep the stub deterministic too
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubInvoiceRepo) CountByClientPeriod(_ context.Context, clientID, periodCode string) (int, error) {
	n := 0
	for _, inv := range s.invoices {
		if inv.ClientID == clientID && inv.PeriodCode == periodCode {
			n++
		}
	}
	return n, nil
}

type stubAllowanceRepo struct {
	allowances []*entity.Allowance
}

func (s *stubAllowanceRepo) Create(context.Context, *entity.Allowance) error { return nil }
func (s *stubAllowanceRepo) Update(context.Context, *entity.Allowance) error { return nil }
func (s *stubAllowanceRepo) Delete(context.Context, string) error            { return nil }

func (s *stubAllowanceRepo) GetByID(_ context.Context, id string) (*entity.Allowance, error) {
	for _, alw := range s.allowances {
		if alw.ID == id {
			return alw, nil
		}
	}
	return nil, nil
}

func (s *stubAllowanceRepo) GetBySerialCode(_ context.Context, clientID, serial string) (*entity.Allowance, error) {
	for _, alw := range s.allowances {
		if alw.ClientID == clientID && serial != "" && alw.SerialCode == serial {
			return alw, nil
		}
	}
	return nil, nil
}

func (s *stubAllowanceRepo) ListByClientPeriodStatus(_ context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Allowance, error) {
	var out []*entity.Allowance
	for _, alw := range s.allowances {
		if alw.ClientID != clientID || alw.PeriodCode != periodCode {
			continue
		}
		if status != "" && alw.Status != status {
			continue
		}
		out = append(out, alw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubAllowanceRepo) ListUnlinkedByOriginalSerial(_ context.Context, clientID, serial string) ([]*entity.Allowance, error) {
	var out []*entity.Allowance
	for _, alw := range s.allowances {
		if alw.ClientID == clientID && alw.OriginalInvoiceSerial == serial && alw.OriginalInvoiceID == "" {
			out = append(out, alw)
		}
	}
	return out, nil
}

type stubRangeRepo struct {
	ranges []*entity.InvoiceRange
}

func (s *stubRangeRepo) ListByClientPeriod(_ context.Context, clientID, periodCode string) ([]*entity.InvoiceRange, error) {
	var out []*entity.InvoiceRange
	for _, rng := range s.ranges {
		if rng.ClientID == clientID && rng.PeriodCode == periodCode {
			out = append(out, rng)
		}
	}
	return out, nil
}
