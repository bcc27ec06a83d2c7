package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/period"
)

// DocumentService mutates invoices and allowances under the period lock.
// Every operation consults the lock guard before touching the store;
// serial-code edits re-run allowance linking so the weak references stay
// as complete as the data allows.
type DocumentService interface {
	CreateInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	ConfirmInvoice(ctx context.Context, id string) (*entity.Invoice, error)
	FailInvoice(ctx context.Context, id string) (*entity.Invoice, error)

	CreateAllowance(ctx context.Context, alw *entity.Allowance) (*entity.Allowance, error)
	UpdateAllowance(ctx context.Context, alw *entity.Allowance) (*entity.Allowance, error)
	DeleteAllowance(ctx context.Context, id string) error
	ConfirmAllowance(ctx context.Context, id string) (*entity.Allowance, error)
	FailAllowance(ctx context.Context, id string) (*entity.Allowance, error)

	ListDocuments(ctx context.Context, clientID, periodCode string) (*DocumentListing, error)
}

// DocumentListing groups a client's invoices and allowances for one period,
// every status included.
type DocumentListing struct {
	Invoices   []*entity.Invoice
	Allowances []*entity.Allowance
}

type documentServiceImpl struct {
	invoices   port.InvoiceRepository
	allowances port.AllowanceRepository
	guard      *PeriodLockGuard
	txManager  port.TransactionManager
	logger     *zap.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(
	invoices port.InvoiceRepository,
	allowances port.AllowanceRepository,
	guard *PeriodLockGuard,
	txManager port.TransactionManager,
	logger *zap.Logger,
) DocumentService {
	return &documentServiceImpl{
		invoices:   invoices,
		allowances: allowances,
		guard:      guard,
		txManager:  txManager,
		logger:     logger,
	}
}

// CreateInvoice stores a new invoice and adopts any unlinked allowances
// already referencing its serial code. Unlike feed imports, a duplicate
// serial here is the caller's mistake and surfaces as an error.
func (s *documentServiceImpl) CreateInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	p, err := period.FromCanonical(inv.PeriodCode)
	if err != nil {
		return nil, err
	}
	inv.PeriodCode = p.Canonical()
	if !inv.InOrOut.Valid() {
		return nil, fmt.Errorf("invalid direction %q", inv.InOrOut)
	}
	if err := s.guard.EnsureEditable(ctx, inv.ClientID, inv.PeriodCode); err != nil {
		return nil, err
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Status == "" {
		inv.Status = entity.DocumentStatusProcessed
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		return s.adoptAllowances(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("client_id", inv.ClientID),
		zap.String("serial", inv.SerialCode))
	return inv, nil
}

// UpdateInvoice replaces an invoice's mutable attributes. A serial-code
// change adopts unlinked allowances that reference the new serial.
func (s *documentServiceImpl) UpdateInvoice(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	existing, err := s.invoices.GetByID(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, inv.ID)
	}
	if err := s.guard.EnsureEditable(ctx, existing.ClientID, existing.PeriodCode); err != nil {
		return nil, err
	}

	serialChanged := inv.SerialCode != existing.SerialCode
	existing.InOrOut = inv.InOrOut
	existing.SerialCode = inv.SerialCode
	existing.Fields = inv.Fields
	existing.Confidence = inv.Confidence
	existing.UpdatedAt = time.Now()

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.invoices.Update(ctx, existing); err != nil {
			return err
		}
		if serialChanged {
			return s.adoptAllowances(ctx, existing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteInvoice removes an invoice. Allowances linked to it fall back to
// their serial reference; the store clears the link on delete.
func (s *documentServiceImpl) DeleteInvoice(ctx context.Context, id string) error {
	existing, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get invoice: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, id)
	}
	if err := s.guard.EnsureEditable(ctx, existing.ClientID, existing.PeriodCode); err != nil {
		return err
	}
	if err := s.invoices.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.logger.Info("invoice deleted",
		zap.String("invoice_id", id),
		zap.String("client_id", existing.ClientID))
	return nil
}

// ConfirmInvoice marks the invoice ready for declaration.
func (s *documentServiceImpl) ConfirmInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	return s.setInvoiceStatus(ctx, id, entity.DocumentStatusConfirmed)
}

// FailInvoice marks the invoice unusable; failed documents never enter a
// declaration.
func (s *documentServiceImpl) FailInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	return s.setInvoiceStatus(ctx, id, entity.DocumentStatusFailed)
}

func (s *documentServiceImpl) setInvoiceStatus(ctx context.Context, id string, status entity.DocumentStatus) (*entity.Invoice, error) {
	existing, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, id)
	}
	if err := s.guard.EnsureEditable(ctx, existing.ClientID, existing.PeriodCode); err != nil {
		return nil, err
	}
	if existing.Status == status {
		return existing, nil
	}
	existing.Status = status
	existing.UpdatedAt = time.Now()
	if err := s.invoices.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	s.logger.Info("invoice status changed",
		zap.String("invoice_id", id),
		zap.String("status", string(status)))
	return existing, nil
}

// CreateAllowance stores a new allowance and links it to its original
// invoice when that invoice is already in the store.
func (s *documentServiceImpl) CreateAllowance(ctx context.Context, alw *entity.Allowance) (*entity.Allowance, error) {
	p, err := period.FromCanonical(alw.PeriodCode)
	if err != nil {
		return nil, err
	}
	alw.PeriodCode = p.Canonical()
	if !alw.InOrOut.Valid() {
		return nil, fmt.Errorf("invalid direction %q", alw.InOrOut)
	}
	if err := s.guard.EnsureEditable(ctx, alw.ClientID, alw.PeriodCode); err != nil {
		return nil, err
	}
	if alw.ID == "" {
		alw.ID = uuid.New().String()
	}
	if alw.Status == "" {
		alw.Status = entity.DocumentStatusProcessed
	}
	alw.CreatedAt = time.Now()
	alw.UpdatedAt = alw.CreatedAt

	if err := s.linkAllowance(ctx, alw); err != nil {
		return nil, err
	}
	if err := s.allowances.Create(ctx, alw); err != nil {
		return nil, err
	}
	s.logger.Info("allowance created",
		zap.String("allowance_id", alw.ID),
		zap.String("client_id", alw.ClientID),
		zap.Bool("linked", alw.Linked()))
	return alw, nil
}

// UpdateAllowance replaces an allowance's mutable attributes. Changing the
// original-invoice serial re-attempts the link from scratch.
func (s *documentServiceImpl) UpdateAllowance(ctx context.Context, alw *entity.Allowance) (*entity.Allowance, error) {
	existing, err := s.allowances.GetByID(ctx, alw.ID)
	if err != nil {
		return nil, fmt.Errorf("get allowance: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, alw.ID)
	}
	if err := s.guard.EnsureEditable(ctx, existing.ClientID, existing.PeriodCode); err != nil {
		return nil, err
	}

	referenceChanged := alw.OriginalInvoiceSerial != existing.OriginalInvoiceSerial
	existing.InOrOut = alw.InOrOut
	existing.SerialCode = alw.SerialCode
	existing.OriginalInvoiceSerial = alw.OriginalInvoiceSerial
	existing.Fields = alw.Fields
	existing.Confidence = alw.Confidence
	existing.UpdatedAt = time.Now()

	if referenceChanged {
		existing.OriginalInvoiceID = ""
		if err := s.linkAllowance(ctx, existing); err != nil {
			return nil, err
		}
	}
	if err := s.allowances.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update allowance: %w", err)
	}
	return existing, nil
}

// DeleteAllowance removes an allowance.
func (s *documentServiceImpl) DeleteAllowance(ctx context.Context, id string) error {
	existing, err := s.allowances.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get allowance: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, id)
	}
	if err := s.guard.EnsureEditable(ctx, existing.ClientID, existing.PeriodCode); err != nil {
		return err
	}
	if err := s.allowances.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete allowance: %w", err)
	}
	s.logger.Info("allowance deleted",
		zap.String("allowance_id", id),
		zap.String("client_id", existing.ClientID))
	return nil
}

// ConfirmAllowance marks the allowance ready for declaration.
func (s *documentServiceImpl) ConfirmAllowance(ctx context.Context, id string) (*entity.Allowance, error) {
	return s.setAllowanceStatus(ctx, id, entity.DocumentStatusConfirmed)
}

// FailAllowance marks the allowance unusable.
func (s *documentServiceImpl) FailAllowance(ctx context.Context, id string) (*entity.Allowance, error) {
	return s.setAllowanceStatus(ctx, id, entity.DocumentStatusFailed)
}

func (s *documentServiceImpl) setAllowanceStatus(ctx context.Context, id string, status entity.DocumentStatus) (*entity.Allowance, error) {
	existing, err := s.allowances.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get allowance: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, id)
	}
	if err := s.guard.EnsureEditable(ctx, existing.ClientID, existing.PeriodCode); err != nil {
		return nil, err
	}
	if existing.Status == status {
		return existing, nil
	}
	existing.Status = status
	existing.UpdatedAt = time.Now()
	if err := s.allowances.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update allowance: %w", err)
	}
	s.logger.Info("allowance status changed",
		zap.String("allowance_id", id),
		zap.String("status", string(status)))
	return existing, nil
}

// ListDocuments returns every invoice and allowance the client holds for
// the period.
func (s *documentServiceImpl) ListDocuments(ctx context.Context, clientID, periodCode string) (*DocumentListing, error) {
	p, err := period.FromCanonical(periodCode)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByClientPeriodStatus(ctx, clientID, p.Canonical(), "")
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	allowances, err := s.allowances.ListByClientPeriodStatus(ctx, clientID, p.Canonical(), "")
	if err != nil {
		return nil, fmt.Errorf("list allowances: %w", err)
	}
	return &DocumentListing{Invoices: invoices, Allowances: allowances}, nil
}

// linkAllowance fills OriginalInvoiceID when the referenced invoice exists.
// A missing invoice is not an error; the allowance stays unlinked.
func (s *documentServiceImpl) linkAllowance(ctx context.Context, alw *entity.Allowance) error {
	if alw.OriginalInvoiceSerial == "" {
		return nil
	}
	orig, err := s.invoices.GetBySerialCode(ctx, alw.ClientID, alw.OriginalInvoiceSerial)
	if err != nil {
		return fmt.Errorf("original invoice lookup: %w", err)
	}
	if orig != nil {
		alw.OriginalInvoiceID = orig.ID
	}
	return nil
}

// adoptAllowances links every unlinked allowance that references the
// invoice's serial code.
func (s *documentServiceImpl) adoptAllowances(ctx context.Context, inv *entity.Invoice) error {
	if inv.SerialCode == "" {
		return nil
	}
	orphans, err := s.allowances.ListUnlinkedByOriginalSerial(ctx, inv.ClientID, inv.SerialCode)
	if err != nil {
		return fmt.Errorf("list unlinked allowances: %w", err)
	}
	for _, alw := range orphans {
		alw.OriginalInvoiceID = inv.ID
		alw.UpdatedAt = time.Now()
		if err := s.allowances.Update(ctx, alw); err != nil {
			return fmt.Errorf("link allowance %s: %w", alw.ID, err)
		}
		s.logger.Info("allowance linked",
			zap.String("allowance_id", alw.ID),
			zap.String("invoice_id", inv.ID))
	}
	return nil
}
