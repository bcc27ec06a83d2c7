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

// AllowanceRepository implements port.AllowanceRepository on postgres.
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	fields, err := json.Marshal(allowance.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	confidence, err := json.Marshal(allowance.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}
	now := time.Now()
	if allowance.CreatedAt.IsZero() {
		allowance.CreatedAt = now
	}
	allowance.UpdatedAt = now

	_, err = r.db.getExecutor(ctx).Exec(ctx, query,
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
		SET storage_ref = $1, file_name = $2, in_or_out = $3, status = $4,
			allowance_serial_code = $5, original_invoice_serial_code = $6,
			original_invoice_id = $7, period_code = $8, period_id = $9,
			fields = $10, confidence = $11, updated_at = $12
		WHERE id = $13
	`

	fields, err := json.Marshal(allowance.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	confidence, err := json.Marshal(allowance.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}
	allowance.UpdatedAt = time.Now()

	tag, err := r.db.getExecutor(ctx).Exec(ctx, query,
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
		r.logger.Error("Failed to update allowance", zap.String("id", allowance.ID), zap.Error(err))
		return fmt.Errorf("failed to update allowance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, allowance.ID)
	}
	return nil
}

// Delete removes an allowance.
func (r *AllowanceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.getExecutor(ctx).Exec(ctx, `DELETE FROM allowances WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete allowance", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete allowance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", port.ErrAllowanceNotFound, id)
	}
	return nil
}

// GetByID retrieves an allowance by its ID
func (r *AllowanceRepository) GetByID(ctx context.Context, id string) (*entity.Allowance, error) {
	query := `SELECT` + allowanceColumns + ` FROM allowances WHERE id = $1`

	allowance, err := scanAllowance(r.db.getExecutor(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
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
	query := `SELECT` + allowanceColumns + ` FROM allowances WHERE client_id = $1 AND allowance_serial_code = $2`

	allowance, err := scanAllowance(r.db.getExecutor(ctx).QueryRow(ctx, query, clientID, serialCode))
	if errors.Is(err, pgx.ErrNoRows) {
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
	query := `SELECT` + allowanceColumns + ` FROM allowances WHERE client_id = $1 AND period_code = $2`
	args := []any{clientID, periodCode}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := r.db.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list allowances",
			zap.String("client_id", clientID),
			zap.String("period", periodCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list allowances: %w", err)
	}
	defer rows.Close()

	return scanAllowances(rows)
}

// ListUnlinkedByOriginalSerial returns allowances that reference the serial
// but carry no original_invoice_id yet.
func (r *AllowanceRepository) ListUnlinkedByOriginalSerial(ctx context.Context, clientID, originalSerial string) ([]*entity.Allowance, error) {
	query := `SELECT` + allowanceColumns + `
		FROM allowances
		WHERE client_id = $1 AND original_invoice_serial_code = $2 AND original_invoice_id IS NULL
		ORDER BY id`

	rows, err := r.db.getExecutor(ctx).Query(ctx, query, clientID, originalSerial)
	if err != nil {
		r.logger.Error("Failed to list unlinked allowances",
			zap.String("client_id", clientID),
			zap.String("original_serial", originalSerial),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list unlinked allowances: %w", err)
	}
	defer rows.Close()

	return scanAllowances(rows)
}

func scanAllowance(row pgx.Row) (*entity.Allowance, error) {
	var allowance entity.Allowance
	var inOrOut, status string
	var originalID *string
	var fields, confidence []byte

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
	if originalID != nil {
		allowance.OriginalInvoiceID = *originalID
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &allowance.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
	}
	if len(confidence) > 0 {
		if err := json.Unmarshal(confidence, &allowance.Confidence); err != nil {
			return nil, fmt.Errorf("unmarshal confidence: %w", err)
		}
	}
	return &allowance, nil
}

func scanAllowances(rows pgx.Rows) ([]*entity.Allowance, error) {
	var allowances []*entity.Allowance
	for rows.Next() {
		allowance, err := scanAllowance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allowance: %w", err)
		}
		allowances = append(allowances, allowance)
	}
	return allowances, rows.Err()
}

// nullableString stores empty strings as NULL so foreign keys and partial
// indexes see true absence.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Verify interface compliance
var _ port.AllowanceRepository = (*AllowanceRepository)(nil)
