package service

import (
	"context"
	"fmt"

	"github.com/yuchialin/vat-filing/internal/application/port"
)

// PeriodLockGuard answers whether a client's period accepts document
// mutation. A period with no filing record has never been worked and is
// editable; locked and filed periods both refuse writes.
type PeriodLockGuard struct {
	periods port.FilingPeriodRepository
}

// NewPeriodLockGuard creates a PeriodLockGuard.
func NewPeriodLockGuard(periods port.FilingPeriodRepository) *PeriodLockGuard {
	return &PeriodLockGuard{periods: periods}
}

// EnsureEditable returns ErrPeriodLocked when the period's filing record
// exists and its status forbids edits.
func (g *PeriodLockGuard) EnsureEditable(ctx context.Context, clientID, periodCode string) error {
	record, err := g.periods.GetByClientPeriod(ctx, clientID, periodCode)
	if err != nil {
		return fmt.Errorf("get filing period: %w", err)
	}
	if record == nil {
		return nil
	}
	if !record.Status.Editable() {
		return fmt.Errorf("%w: %s is %s", port.ErrPeriodLocked, periodCode, record.Status)
	}
	return nil
}
