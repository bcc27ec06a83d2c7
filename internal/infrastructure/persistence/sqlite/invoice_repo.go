package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

// InvoiceRepository implements port.InvoiceRepository on sqlite.
type InvoiceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	id, firm_id, client_id, storage_ref, file_name, in_or_out, status,
	invoice_serial_code, period_code, period_id, fields, confidence,
	created_at, updated_at`

// Create inserts a new invoice. A serial-code collision with another record
// of the same client maps to ErrDuplicateSerialCode.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, firm_id, client_id, storage_ref, file_name, in_or_out, status,
			invoice_serial_code, period_code, period_id, fields, confidence,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	fields, err := marshalJSON(invoice.Fields)
	if err != nil {
		return err
	}
	confidence, err := marshalJSON(invoice.Confidence)
	if err != nil {
		return err
	}
	now := time.Now()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	_, err = r.db.getExecutor(ctx).ExecContext(ctx, query,
		invoice.ID,
		invoice.FirmID,
		invoice.ClientID,
		invoice.StorageRef,
		invoice.FileName,
		string(invoice.InOrOut),
		string(invoice.Status),
		invoice.SerialCode,
		invoice.PeriodCode,
		invoice.PeriodID,
		fields,
		confidence,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", port.ErrDuplicateSerialCode, invoice.SerialCode)
		}
		r.logger.Error("Failed to create invoice",
			zap.String("id", invoice.ID),
			zap.String("client_id", invoice.ClientID),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// Update replaces an invoice's stored attributes.
func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET storage_ref = ?, file_name = ?, in_or_out = ?, status = ?,
			invoice_serial_code = ?, period_code = ?, period_id = ?,
			fields = ?, confidence = ?, updated_at = ?
		WHERE id = ?
	`

	fields, err := marshalJSON(invoice.Fields)
	if err != nil {
		return err
	}
	confidence, err := marshalJSON(invoice.Confidence)
	if err != nil {
		return err
	}
	invoice.UpdatedAt = time.Now()

	result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		invoice.StorageRef,
		invoice.FileName,
		string(invoice.InOrOut),
		string(invoice.Status),
		invoice.SerialCode,
		invoice.PeriodCode,
		invoice.PeriodID,
		fields,
		confidence,
		invoice.UpdatedAt,
		invoice.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", port.ErrDuplicateSerialCode, invoice.SerialCode)
		}
		r.logger.Error("Failed to update invoice",
			zap.String("id", invoice.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, invoice.ID)
	}
	return nil
}

// Delete removes an invoice. Allowance links referencing it are cleared by
// the schema's ON DELETE SET NULL.
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.getExecutor(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, id)
	}
	return nil
}

// GetByID retrieves an invoice by its ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := r.scanInvoice(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetBySerialCode resolves (client_id, invoice_serial_code). Empty serial
// codes never match.
func (r *InvoiceRepository) GetBySerialCode(ctx context.Context, clientID, serialCode string) (*entity.Invoice, error) {
	if serialCode == "" {
		return nil, nil
	}
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE client_id = ? AND invoice_serial_code = ?`

	invoice, err := r.scanInvoice(r.db.getExecutor(ctx).QueryRowContext(ctx, query, clientID, serialCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by serial code",
			zap.String("client_id", clientID),
			zap.String("serial", serialCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// ListByClientPeriodStatus returns the client's invoices for a period
// filtered by status; an empty status returns every status.
func (r *InvoiceRepository) ListByClientPeriodStatus(ctx context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE client_id = ? AND period_code = ?`
	args := []interface{}{clientID, periodCode}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices",
			zap.String("client_id", clientID),
			zap.String("period", periodCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	return r.scanInvoices(rows)
}

// CountByClientPeriod counts the client's invoices in a period.
func (r *InvoiceRepository) CountByClientPeriod(ctx context.Context, clientID, periodCode string) (int, error) {
	var count int
	err := r.db.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE client_id = ? AND period_code = ?`,
		clientID, periodCode,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InvoiceRepository) scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var inOrOut, status, fields, confidence string

	err := row.Scan(
		&invoice.ID,
		&invoice.FirmID,
		&invoice.ClientID,
		&invoice.StorageRef,
		&invoice.FileName,
		&inOrOut,
		&status,
		&invoice.SerialCode,
		&invoice.PeriodCode,
		&invoice.PeriodID,
		&fields,
		&confidence,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.InOrOut = entity.Direction(inOrOut)
	invoice.Status = entity.DocumentStatus(status)
	if err := unmarshalJSON(fields, &invoice.Fields); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(confidence, &invoice.Confidence); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) scanInvoices(rows *sql.Rows) ([]*entity.Invoice, error) {
	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := r.scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
