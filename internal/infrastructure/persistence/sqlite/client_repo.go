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

// ClientRepository implements port.ClientRepository on sqlite.
type ClientRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB, logger *zap.Logger) port.ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new client.
func (r *ClientRepository) Create(ctx context.Context, client *entity.Client) error {
	query := `
		INSERT INTO clients (
			id, firm_id, name, tax_id, tax_registration_number, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	_, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		client.ID,
		client.FirmID,
		client.Name,
		client.TaxID,
		client.TaxRegistrationNumber,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create client",
			zap.String("id", client.ID),
			zap.String("tax_id", client.TaxID),
			zap.Error(err))
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByID retrieves a client by its ID
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*entity.Client, error) {
	query := `
		SELECT id, firm_id, name, tax_id, tax_registration_number, created_at, updated_at
		FROM clients
		WHERE id = ?
	`

	client, err := r.scanClient(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// GetByTaxID resolves (firm_id, tax_id).
func (r *ClientRepository) GetByTaxID(ctx context.Context, firmID, taxID string) (*entity.Client, error) {
	query := `
		SELECT id, firm_id, name, tax_id, tax_registration_number, created_at, updated_at
		FROM clients
		WHERE firm_id = ? AND tax_id = ?
	`

	client, err := r.scanClient(r.db.getExecutor(ctx).QueryRowContext(ctx, query, firmID, taxID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client by tax ID",
			zap.String("firm_id", firmID),
			zap.String("tax_id", taxID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

func (r *ClientRepository) scanClient(row rowScanner) (*entity.Client, error) {
	var client entity.Client
	err := row.Scan(
		&client.ID,
		&client.FirmID,
		&client.Name,
		&client.TaxID,
		&client.TaxRegistrationNumber,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Verify interface compliance
var _ port.ClientRepository = (*ClientRepository)(nil)
