package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

func TestPeriodLockGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("no filing record means editable", func(t *testing.T) {
		guard := NewPeriodLockGuard(newMemPeriodRepo())
		assert.NoError(t, guard.EnsureEditable(ctx, "client-1", "11305"))
	})

	t.Run("open period is editable", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusOpen)
		guard := NewPeriodLockGuard(periods)
		assert.NoError(t, guard.EnsureEditable(ctx, "client-1", "11305"))
	})

	t.Run("locked period refuses edits", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
		guard := NewPeriodLockGuard(periods)
		require.ErrorIs(t, guard.EnsureEditable(ctx, "client-1", "11305"), port.ErrPeriodLocked)
	})

	t.Run("filed period refuses edits", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusFiled)
		guard := NewPeriodLockGuard(periods)
		require.ErrorIs(t, guard.EnsureEditable(ctx, "client-1", "11305"), port.ErrPeriodLocked)
	})

	t.Run("lock is scoped to the period", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
		guard := NewPeriodLockGuard(periods)
		assert.NoError(t, guard.EnsureEditable(ctx, "client-1", "11307"))
		assert.NoError(t, guard.EnsureEditable(ctx, "client-2", "11305"))
	})
}
