package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

// InvoiceRepository implements port.InvoiceRepository on postgres. JSON
// columns are JSONB; the pgx driver maps them from json.RawMessage.
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

// Create inserts a new invoice, mapping serial-code collisions to
// ErrDuplicateSerialCode.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, firm_id, client_id, storage_ref, file_name, in_or_out, status,
			invoice_serial_code, period_code, period_id, fields, confidence,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	fields, err := json.Marshal(invoice.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	confidence, err := json.Marshal(invoice.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}
	now := time.Now()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	_, err = r.db.getExecutor(ctx).Exec(ctx, query,
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
		SET storage_ref = $1, file_name = $2, in_or_out = $3, status = $4,
			invoice_serial_code = $5, period_code = $6, period_id = $7,
			fields = $8, confidence = $9, updated_at = $10
		WHERE id = $11
	`

	fields, err := json.Marshal(invoice.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	confidence, err := json.Marshal(invoice.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}
	invoice.UpdatedAt = time.Now()

	tag, err := r.db.getExecutor(ctx).Exec(ctx, query,
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
		r.logger.Error("Failed to update invoice", zap.String("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, invoice.ID)
	}
	return nil
}

// Delete removes an invoice.
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.getExecutor(ctx).Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", port.ErrInvoiceNotFound, id)
	}
	return nil
}

// GetByID retrieves an invoice by its ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = $1`

	invoice, err := scanInvoice(r.db.getExecutor(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
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
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE client_id = $1 AND invoice_serial_code = $2`

	invoice, err := scanInvoice(r.db.getExecutor(ctx).QueryRow(ctx, query, clientID, serialCode))
	if errors.Is(err, pgx.ErrNoRows) {
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
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE client_id = $1 AND period_code = $2`
	args := []any{clientID, periodCode}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := r.db.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices",
			zap.String("client_id", clientID),
			zap.String("period", periodCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// CountByClientPeriod counts the client's invoices in a period.
func (r *InvoiceRepository) CountByClientPeriod(ctx context.Context, clientID, periodCode string) (int, error) {
	var count int
	err := r.db.getExecutor(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE client_id = $1 AND period_code = $2`,
		clientID, periodCode,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var inOrOut, status string
	var fields, confidence []byte

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
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &invoice.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
	}
	if len(confidence) > 0 {
		if err := json.Unmarshal(confidence, &invoice.Confidence); err != nil {
			return nil, fmt.Errorf("unmarshal confidence: %w", err)
		}
	}
	return &invoice, nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
