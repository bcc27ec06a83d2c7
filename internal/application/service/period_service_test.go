package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/period"
)

func newTestPeriodService(periods *memPeriodRepo, notifier port.Notifier) PeriodService {
	clients := newMemClientRepo(testServiceClient())
	return NewPeriodService(periods, clients, notifier, zap.NewNop())
}

func TestPeriodServiceGetOrCreate(t *testing.T) {
	ctx := context.Background()
	periods := newMemPeriodRepo()
	svc := newTestPeriodService(periods, nil)

	record, err := svc.GetOrCreate(ctx, "firm-1", "client-1", "11305")
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, entity.PeriodStatusOpen, record.Status)
	assert.Equal(t, "11305", record.PeriodCode)

	again, err := svc.GetOrCreate(ctx, "firm-1", "client-1", "11305")
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID, "a second call must reuse the record")
	assert.Len(t, periods.rows, 1)
}

func TestPeriodServiceGetOrCreateNormalizesEvenMonth(t *testing.T) {
	ctx := context.Background()
	svc := newTestPeriodService(newMemPeriodRepo(), nil)

	record, err := svc.GetOrCreate(ctx, "firm-1", "client-1", "11306")
	require.NoError(t, err)
	assert.Equal(t, "11305", record.PeriodCode)
}

func TestPeriodServiceStatus(t *testing.T) {
	ctx := context.Background()
	periods := newMemPeriodRepo()
	svc := newTestPeriodService(periods, nil)

	t.Run("missing record reads as open", func(t *testing.T) {
		record, err := svc.Status(ctx, "client-1", "11305")
		require.NoError(t, err)
		assert.Equal(t, entity.PeriodStatusOpen, record.Status)
		assert.Empty(t, record.ID)
		assert.Empty(t, periods.rows, "Status must not create a record")
	})

	t.Run("existing record is returned as stored", func(t *testing.T) {
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
		record, err := svc.Status(ctx, "client-1", "11305")
		require.NoError(t, err)
		assert.Equal(t, "p1", record.ID)
		assert.Equal(t, entity.PeriodStatusLocked, record.Status)
	})

	t.Run("malformed period code is rejected", func(t *testing.T) {
		_, err := svc.Status(ctx, "client-1", "20240501")
		require.ErrorIs(t, err, period.ErrInvalidFormat)
	})
}

func TestPeriodServiceTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("lock creates the record when missing", func(t *testing.T) {
		periods := newMemPeriodRepo()
		svc := newTestPeriodService(periods, nil)

		record, err := svc.Lock(ctx, "firm-1", "client-1", "11305")
		require.NoError(t, err)
		assert.Equal(t, entity.PeriodStatusLocked, record.Status)
		assert.Len(t, periods.rows, 1)
	})

	t.Run("lock then unlock round-trips", func(t *testing.T) {
		periods := newMemPeriodRepo()
		svc := newTestPeriodService(periods, nil)

		_, err := svc.Lock(ctx, "firm-1", "client-1", "11305")
		require.NoError(t, err)
		record, err := svc.Unlock(ctx, "client-1", "11305")
		require.NoError(t, err)
		assert.Equal(t, entity.PeriodStatusOpen, record.Status)
	})

	t.Run("locking a locked period is a no-op", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
		svc := newTestPeriodService(periods, nil)

		record, err := svc.Lock(ctx, "firm-1", "client-1", "11305")
		require.NoError(t, err)
		assert.Equal(t, entity.PeriodStatusLocked, record.Status)
	})

	t.Run("filing requires a locked period", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusOpen)
		svc := newTestPeriodService(periods, nil)

		_, err := svc.MarkFiled(ctx, "client-1", "11305")
		require.ErrorIs(t, err, port.ErrInvalidTransition)
	})

	t.Run("filed is terminal", func(t *testing.T) {
		periods := newMemPeriodRepo()
		periods.seed("p1", "client-1", "11305", entity.PeriodStatusFiled)
		svc := newTestPeriodService(periods, nil)

		_, err := svc.Unlock(ctx, "client-1", "11305")
		require.ErrorIs(t, err, port.ErrInvalidTransition)
	})

	t.Run("unlock without a record fails", func(t *testing.T) {
		svc := newTestPeriodService(newMemPeriodRepo(), nil)
		_, err := svc.Unlock(ctx, "client-1", "11305")
		require.ErrorIs(t, err, port.ErrPeriodNotFound)
	})
}

func TestPeriodServiceMarkFiledNotifies(t *testing.T) {
	ctx := context.Background()
	periods := newMemPeriodRepo()
	periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
	notifier := &recordingNotifier{}
	svc := newTestPeriodService(periods, notifier)

	record, err := svc.MarkFiled(ctx, "client-1", "11305")
	require.NoError(t, err)
	assert.Equal(t, entity.PeriodStatusFiled, record.Status)

	require.Len(t, notifier.filed, 1)
	assert.Equal(t, "大安商行", notifier.filed[0].ClientName)
	assert.Equal(t, "113年05-06月", notifier.filed[0].PeriodLabel)
}

func TestPeriodServiceMarkFiledSurvivesNotifierFailure(t *testing.T) {
	ctx := context.Background()
	periods := newMemPeriodRepo()
	periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
	notifier := &recordingNotifier{err: assert.AnError}
	svc := newTestPeriodService(periods, notifier)

	record, err := svc.MarkFiled(ctx, "client-1", "11305")
	require.NoError(t, err, "a failed notice must not fail the filing")
	assert.Equal(t, entity.PeriodStatusFiled, record.Status)
}
