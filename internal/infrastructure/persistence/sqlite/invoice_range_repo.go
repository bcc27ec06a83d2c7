package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

// InvoiceRangeRepository implements port.InvoiceRangeRepository on sqlite.
// The engine only reads ranges; the table is maintained externally.
type InvoiceRangeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInvoiceRangeRepository creates a new invoice range repository
func NewInvoiceRangeRepository(db *DB, logger *zap.Logger) port.InvoiceRangeRepository {
	return &InvoiceRangeRepository{
		db:     db,
		logger: logger,
	}
}

// ListByClientPeriod returns the client's declared ranges for a period in
// track order.
func (r *InvoiceRangeRepository) ListByClientPeriod(ctx context.Context, clientID, periodCode string) ([]*entity.InvoiceRange, error) {
	query := `
		SELECT id, client_id, period_code, invoice_type, track,
			range_from, range_to, used_through, created_at, updated_at
		FROM invoice_ranges
		WHERE client_id = ? AND period_code = ?
		ORDER BY track, range_from
	`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, clientID, periodCode)
	if err != nil {
		r.logger.Error("Failed to list invoice ranges",
			zap.String("client_id", clientID),
			zap.String("period", periodCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list invoice ranges: %w", err)
	}
	defer rows.Close()

	return r.scanRanges(rows)
}

func (r *InvoiceRangeRepository) scanRanges(rows *sql.Rows) ([]*entity.InvoiceRange, error) {
	var ranges []*entity.InvoiceRange
	for rows.Next() {
		var rng entity.InvoiceRange
		var invoiceType string
		var usedThrough sql.NullString

		err := rows.Scan(
			&rng.ID,
			&rng.ClientID,
			&rng.PeriodCode,
			&invoiceType,
			&rng.Track,
			&rng.RangeFrom,
			&rng.RangeTo,
			&usedThrough,
			&rng.CreatedAt,
			&rng.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice range: %w", err)
		}
		rng.InvoiceType = entity.InvoiceType(invoiceType)
		if usedThrough.Valid {
			rng.UsedThrough = usedThrough.String
		}
		ranges = append(ranges, &rng)
	}
	return ranges, rows.Err()
}

// Verify interface compliance
var _ port.InvoiceRangeRepository = (*InvoiceRangeRepository)(nil)
