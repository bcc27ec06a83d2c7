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

// AllowanceRepository implements port.AllowanceRepository on sqlite.
type AllowanceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAllowanceRepository creates a new allowance repository
func NewAllowanceRepository(db *DB, logger *zap.Logger) port.AllowanceRepository {
	return &AllowanceRepository{
		db:     db,
		logger: logger,
	}
}

const allowanceColumns = `
	id, firm_id, client_id, storage_ref, file_name, in_or_out, status,
	allowance_serial_code, original_invoice_serial_code, original_invoice_id,
	period_code, period_id, fields, confidence, created_at, updated_at`

// Create inserts a new allowance, mapping serial-code collisions to
// ErrDuplicateSerialCode.
func (r *AllowanceRepository) Create(ctx context.Context, allowance *entity.Allowance) error {
	query := `
		INSERT INTO allowances (
			id, firm_id, client_id, storage_ref, file_name, in_or_out, status,
			allowance_serial_code, original_invoice_serial_code, original_invoice_id,
			period_code, period_id, fields, confidence, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	fields, err := marshalJSON(allowance.Fields)
	if err != nil {
		return err
	}
	confidence, err := marshalJSON(allowance.Confidence)
	if err != nil {
		return err
	}
	now := time.Now()
	if allowance.CreatedAt.IsZero() {
		allowance.CreatedAt = now
	}
	allowance.UpdatedAt = now

	_, err = r.db.getExecutor(ctx).ExecContext(ctx, query,
		allowance.ID,
		allowance.FirmID,
		allowance.ClientID,
		allowance.StorageRef,
		allowance.FileName,
		string(allowance.InOrOut),
		string(allowance.Status),
		allowance.SerialCode,
		allowance.OriginalInvoiceSerial,
		nullableString(allowance.OriginalInvoiceID),
		allowance.PeriodCode,
		allowance.PeriodID,
		fields,
		confidence,
		allowance.CreatedAt,
		allowance.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", port.ErrDuplicateSerialCode, allowance.SerialCode)
		}
		r.logger.Error("Failed to create allowance",
			zap.String("id", allowance.ID),
			zap.String("client_id", allowance.ClientID),
			zap.Error(err))
		return fmt.Errorf("failed to create allowance: %w", err)
	}
	return nil
}

// Update replaces an allowance's stored attributes.
func (r *AllowanceRepository) Update(ctx context.Context, allowance *entity.Allowance) error {
	query := `
		UPDATE allowances
		SET storage_ref = ?, file_name = ?, in_or_out = ?, status = ?,
			allowance_serial_code = ?, original_invoice_serial_code = ?,
			original_invoice_id = ?, period_code = ?, period_id = ?,
			fields = ?, confidence = ?, updated_at = ?
		WHERE id = ?
	`

	fields, err := marshalJSON(allowance.Fields)
	if err != nil {
		return err
	}
	confidence, err := marshalJSON(allowance.Confidence)
	if err != nil {
		return err
	}
	allowance.UpdatedAt = time.Now()

	result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		allowance.StorageRef,
		allowance.FileName,
		string(allowance.InOrOut),
		string(allowance.Status),
		allowance.SerialCode,
		allowance.OriginalInvoiceSerial,
		nullableString(allowance.OriginalInvoiceID),
		allowance.PeriodCode,
		allowance.PeriodID,
		fields,
		confidence,
		allowance.UpdatedAt,
		allowance.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", port.ErrDuplicateSerialCode, allowance.SerialCode)
		}
		r.logger.Error("Failed to update allowance",
			zap.String("id", allowance.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update allowance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, allowance.ID)
	}
	return nil
}

// Delete removes an allowance.
func (r *AllowanceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.getExecutor(ctx).ExecContext(ctx, `DELETE FROM allowances WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete allowance", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete allowance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, id)
	}
	return nil
}

// GetByID retrieves an allowance by its ID
func (r *AllowanceRepository) GetByID(ctx context.Context, id string) (*entity.Allowance, error) {
	query := `SELECT` + allowanceColumns + ` FROM allowances WHERE id = ?`

	allowance, err := r.scanAllowance(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get allowance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return allowance, nil
}

// GetBySerialCode resolves (client_id, allowance_serial_code). Empty serial
// codes never match.
func (r *AllowanceRepository) GetBySerialCode(ctx context.Context, clientID, serialCode string) (*entity.Allowance, error) {
	if serialCode == "" {
		return nil, nil
	}
	query := `SELECT` + allowanceColumns + ` FROM allowances WHERE client_id = ? AND allowance_serial_code = ?`

	allowance, err := r.scanAllowance(r.db.getExecutor(ctx).QueryRowContext(ctx, query, clientID, serialCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get allowance by serial code",
			zap.String("client_id", clientID),
			zap.String("serial", serialCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return allowance, nil
}

// ListByClientPeriodStatus returns the client's allowances for a period
// filtered by status; an empty status returns every status.
func (r *AllowanceRepository) ListByClientPeriodStatus(ctx context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Allowance, error) {
	query := `SELECT` + allowanceColumns + ` FROM allowances WHERE client_id = ? AND period_code = ?`
	args := []interface{}{clientID, periodCode}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list allowances",
			zap.String("client_id", clientID),
			zap.String("period", periodCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list allowances: %w", err)
	}
	defer rows.Close()

	return r.scanAllowances(rows)
}

// ListUnlinkedByOriginalSerial returns allowances that reference the serial
// but carry no original_invoice_id yet.
func (r *AllowanceRepository) ListUnlinkedByOriginalSerial(ctx context.Context, clientID, originalSerial string) ([]*entity.Allowance, error) {
	query := `SELECT` + allowanceColumns + `
		FROM allowances
		WHERE client_id = ? AND original_invoice_serial_code = ? AND original_invoice_id IS NULL
		ORDER BY id`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, clientID, originalSerial)
	if err != nil {
		r.logger.Error("Failed to list unlinked allowances",
			zap.String("client_id", clientID),
			zap.String("original_serial", originalSerial),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list unlinked allowances: %w", err)
	}
	defer rows.Close()

	return r.scanAllowances(rows)
}

func (r *AllowanceRepository) scanAllowance(row rowScanner) (*entity.Allowance, error) {
	var allowance entity.Allowance
	var inOrOut, status, fields, confidence string
	var originalID sql.NullString

	err := row.Scan(
		&allowance.ID,
		&allowance.FirmID,
		&allowance.ClientID,
		&allowance.StorageRef,
		&allowance.FileName,
		&inOrOut,
		&status,
		&allowance.SerialCode,
		&allowance.OriginalInvoiceSerial,
		&originalID,
		&allowance.PeriodCode,
		&allowance.PeriodID,
		&fields,
		&confidence,
		&allowance.CreatedAt,
		&allowance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	allowance.InOrOut = entity.Direction(inOrOut)
	allowance.Status = entity.DocumentStatus(status)
	if originalID.Valid {
		allowance.OriginalInvoiceID = originalID.String
	}
	if err := unmarshalJSON(fields, &allowance.Fields); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(confidence, &allowance.Confidence); err != nil {
		return nil, err
	}
	return &allowance, nil
}

func (r *AllowanceRepository) scanAllowances(rows *sql.Rows) ([]*entity.Allowance, error) {
	var allowances []*entity.Allowance
	for rows.Next() {
		allowance, err := r.scanAllowance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allowance: %w", err)
		}
		allowances = append(allowances, allowance)
	}
	return allowances, rows.Err()
}

// nullableString stores empty strings as NULL so foreign keys and partial
// indexes see true absence.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Verify interface compliance
var _ port.AllowanceRepository = (*AllowanceRepository)(nil)
