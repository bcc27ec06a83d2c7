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

// PeriodService manages the filing lifecycle of a client's bi-monthly
// periods. Filing records are created lazily: a period nobody has touched
// has no row and reads as open.
type PeriodService interface {
	GetOrCreate(ctx context.Context, firmID, clientID, periodCode string) (*entity.TaxFilingPeriod, error)
	Status(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error)
	Lock(ctx context.Context, firmID, clientID, periodCode string) (*entity.TaxFilingPeriod, error)
	Unlock(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error)
	MarkFiled(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error)
}

type periodServiceImpl struct {
	periods  port.FilingPeriodRepository
	clients  port.ClientRepository
	notifier port.Notifier
	logger   *zap.Logger
}

// NewPeriodService creates a PeriodService. notifier may be nil when the
// firm has no chat integration configured.
func NewPeriodService(
	periods port.FilingPeriodRepository,
	clients port.ClientRepository,
	notifier port.Notifier,
	logger *zap.Logger,
) PeriodService {
	return &periodServiceImpl{
		periods:  periods,
		clients:  clients,
		notifier: notifier,
		logger:   logger,
	}
}

// GetOrCreate returns the filing record for the client and period, creating
// an open one when none exists yet.
func (s *periodServiceImpl) GetOrCreate(ctx context.Context, firmID, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	p, err := period.FromCanonical(periodCode)
	if err != nil {
		return nil, err
	}
	periodCode = p.Canonical()

	record, err := s.periods.GetByClientPeriod(ctx, clientID, periodCode)
	if err != nil {
		return nil, fmt.Errorf("get filing period: %w", err)
	}
	if record != nil {
		return record, nil
	}

	now := time.Now()
	record = &entity.TaxFilingPeriod{
		ID:         uuid.New().String(),
		FirmID:     firmID,
		ClientID:   clientID,
		PeriodCode: periodCode,
		Status:     entity.PeriodStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.periods.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create filing period: %w", err)
	}
	s.logger.Info("filing period opened",
		zap.String("client_id", clientID),
		zap.String("period", periodCode))
	return record, nil
}

// Status reports the period's filing state. A period with no record reads
// as open without creating one.
func (s *periodServiceImpl) Status(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	p, err := period.FromCanonical(periodCode)
	if err != nil {
		return nil, err
	}
	periodCode = p.Canonical()

	record, err := s.periods.GetByClientPeriod(ctx, clientID, periodCode)
	if err != nil {
		return nil, fmt.Errorf("get filing period: %w", err)
	}
	if record == nil {
		return &entity.TaxFilingPeriod{
			ClientID:   clientID,
			PeriodCode: periodCode,
			Status:     entity.PeriodStatusOpen,
		}, nil
	}
	return record, nil
}

// Lock freezes the period against document mutation. Locking a period that
// has never been worked creates its record first.
func (s *periodServiceImpl) Lock(ctx context.Context, firmID, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	record, err := s.GetOrCreate(ctx, firmID, clientID, periodCode)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, record, entity.PeriodStatusLocked)
}

// Unlock reopens a locked period. Filed periods never reopen.
func (s *periodServiceImpl) Unlock(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	record, err := s.requireRecord(ctx, clientID, periodCode)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, record, entity.PeriodStatusOpen)
}

// MarkFiled finalizes a locked period and announces the filing to the
// firm's chat group. Notification failures are logged, never returned.
func (s *periodServiceImpl) MarkFiled(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	record, err := s.requireRecord(ctx, clientID, periodCode)
	if err != nil {
		return nil, err
	}
	record, err = s.transition(ctx, record, entity.PeriodStatusFiled)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		notice := port.FiledNotice{PeriodLabel: periodLabel(record.PeriodCode)}
		if client, cerr := s.clients.GetByID(ctx, clientID); cerr == nil && client != nil {
			notice.ClientName = client.Name
		}
		if nerr := s.notifier.PeriodFiled(ctx, notice); nerr != nil {
			s.logger.Warn("filed notice delivery failed",
				zap.String("client_id", clientID),
				zap.String("period", record.PeriodCode),
				zap.Error(nerr))
		}
	}
	return record, nil
}

func (s *periodServiceImpl) requireRecord(ctx context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	p, err := period.FromCanonical(periodCode)
	if err != nil {
		return nil, err
	}
	periodCode = p.Canonical()

	record, err := s.periods.GetByClientPeriod(ctx, clientID, periodCode)
	if err != nil {
		return nil, fmt.Errorf("get filing period: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s has no filing record", port.ErrPeriodNotFound, periodCode)
	}
	return record, nil
}

func (s *periodServiceImpl) transition(ctx context.Context, record *entity.TaxFilingPeriod, next entity.PeriodStatus) (*entity.TaxFilingPeriod, error) {
	if record.Status == next {
		return record, nil
	}
	if !record.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", port.ErrInvalidTransition, record.Status, next)
	}
	if err := s.periods.UpdateStatus(ctx, record.ID, next); err != nil {
		return nil, fmt.Errorf("update period status: %w", err)
	}
	s.logger.Info("filing period transitioned",
		zap.String("client_id", record.ClientID),
		zap.String("period", record.PeriodCode),
		zap.String("from", string(record.Status)),
		zap.String("to", string(next)))
	record.Status = next
	record.UpdatedAt = time.Now()
	return record, nil
}

// periodLabel renders the canonical code as a human label, falling back to
// the raw code when it does not parse.
func periodLabel(periodCode string) string {
	p, err := period.FromCanonical(periodCode)
	if err != nil {
		return periodCode
	}
	return p.Label()
}
