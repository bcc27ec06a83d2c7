package port

import (
	"context"

	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

// Repository readers return (nil, nil) when no row matches; services decide
// whether absence is an error.

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	Update(ctx context.Context, invoice *entity.Invoice) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	// GetBySerialCode resolves the compound uniqueness key
	// (client_id, invoice_serial_code). Empty serial codes never match.
	GetBySerialCode(ctx context.Context, clientID, serialCode string) (*entity.Invoice, error)

	// ListByClientPeriodStatus returns the client's invoices for a period
	// filtered by status; an empty status returns every status.
	ListByClientPeriodStatus(ctx context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Invoice, error)

	CountByClientPeriod(ctx context.Context, clientID, periodCode string) (int, error)
}

// AllowanceRepository defines persistence operations for Allowance
type AllowanceRepository interface {
	Create(ctx context.Context, allowance *entity.Allowance) error
	Update(ctx context.Context, allowance *entity.Allowance) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*entity.Allowance, error)

	// GetBySerialCode resolves (client_id, allowance_serial_code); empty
	// serial codes never match.
	GetBySerialCode(ctx context.Context, clientID, serialCode string) (*entity.Allowance, error)

	ListByClientPeriodStatus(ctx context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Allowance, error)

	// ListUnlinkedByOriginalSerial returns allowances that reference the
	// given original invoice serial but have no original_invoice_id yet,
	// so a newly created or renumbered invoice can adopt them.
	ListUnlinkedByOriginalSerial(ctx context.Context, clientID, originalSerial string) ([]*entity.Allowance, error)
}

// FilingPeriodRepository defines persistence operations for TaxFilingPeriod
type FilingPeriodRepository interface {
	Create(ctx context.Context, p *entity.TaxFilingPeriod) error
	GetByID(ctx context.Context, id string) (*entity.TaxFilingPeriod, error)
	GetByClientPeriod(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error)
	UpdateStatus(ctx context.Context, id string, status entity.PeriodStatus) error
}

// InvoiceRangeRepository reads declared paper invoice ranges. Ranges are
// maintained by an external system; the filing engine only consumes them.
type InvoiceRangeRepository interface {
	ListByClientPeriod(ctx context.Context, clientID, periodCode string) ([]*entity.InvoiceRange, error)
}

// ClientRepository defines persistence operations for Client
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id string) (*entity.Client, error)
	GetByTaxID(ctx context.Context, firmID, taxID string) (*entity.Client, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
