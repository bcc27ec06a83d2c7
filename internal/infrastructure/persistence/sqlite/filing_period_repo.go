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

// FilingPeriodRepository implements port.FilingPeriodRepository on sqlite.
type FilingPeriodRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewFilingPeriodRepository creates a new filing period repository
func NewFilingPeriodRepository(db *DB, logger *zap.Logger) port.FilingPeriodRepository {
	return &FilingPeriodRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a filing period record. (client_id, period_code) is unique;
// concurrent creation of the same period surfaces as an error rather than a
// second row.
func (r *FilingPeriodRepository) Create(ctx context.Context, p *entity.TaxFilingPeriod) error {
	query := `
		INSERT INTO tax_filing_periods (
			id, firm_id, client_id, period_code, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		p.ID,
		p.FirmID,
		p.ClientID,
		p.PeriodCode,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create filing period",
			zap.String("client_id", p.ClientID),
			zap.String("period", p.PeriodCode),
			zap.Error(err))
		return fmt.Errorf("failed to create filing period: %w", err)
	}
	return nil
}

// GetByID retrieves a filing period by its ID
func (r *FilingPeriodRepository) GetByID(ctx context.Context, id string) (*entity.TaxFilingPeriod, error) {
	query := `
		SELECT id, firm_id, client_id, period_code, status, created_at, updated_at
		FROM tax_filing_periods
		WHERE id = ?
	`

	p, err := r.scanPeriod(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get filing period by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get filing period: %w", err)
	}
	return p, nil
}

// GetByClientPeriod resolves (client_id, period_code).
func (r *FilingPeriodRepository) GetByClientPeriod(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	query := `
		SELECT id, firm_id, client_id, period_code, status, created_at, updated_at
		FROM tax_filing_periods
		WHERE client_id = ? AND period_code = ?
	`

	p, err := r.scanPeriod(r.db.getExecutor(ctx).QueryRowContext(ctx, query, clientID, periodCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get filing period",
			zap.String("client_id", clientID),
			zap.String("period", periodCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get filing period: %w", err)
	}
	return p, nil
}

// UpdateStatus sets the period's status.
func (r *FilingPeriodRepository) UpdateStatus(ctx context.Context, id string, status entity.PeriodStatus) error {
	result, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`UPDATE tax_filing_periods SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		r.logger.Error("Failed to update filing period status",
			zap.String("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update filing period status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", port.ErrPeriodNotFound, id)
	}
	return nil
}

func (r *FilingPeriodRepository) scanPeriod(row rowScanner) (*entity.TaxFilingPeriod, error) {
	var p entity.TaxFilingPeriod
	var status string

	err := row.Scan(
		&p.ID,
		&p.FirmID,
		&p.ClientID,
		&p.PeriodCode,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = entity.PeriodStatus(status)
	return &p, nil
}

// Verify interface compliance
var _ port.FilingPeriodRepository = (*FilingPeriodRepository)(nil)
