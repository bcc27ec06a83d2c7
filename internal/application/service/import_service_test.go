package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/reconcile"
)

const serviceInvoiceFeed = `發票號碼,發票日期,買方統一編號,賣方統一編號,銷售額,稅額,總計
AB12345678,113/05/02,12345675,22334455,1000,50,1050
AB12345679,113/05/15,12345675,22334455,2000,100,2100
`

type importFixture struct {
	svc      ImportService
	invoices *memInvoiceRepo
	storage  *memStorage
	periods  *memPeriodRepo
	notifier *recordingNotifier
	tx       *passthroughTx
}

func newImportFixture() *importFixture {
	invoices := newMemInvoiceRepo()
	allowances := newMemAllowanceRepo()
	storage := newMemStorage()
	periods := newMemPeriodRepo()
	notifier := &recordingNotifier{}
	tx := &passthroughTx{}
	logger := zap.NewNop()

	guard := NewPeriodLockGuard(periods)
	importer := reconcile.NewImporter(invoices, allowances, storage, guard, logger)
	clients := newMemClientRepo(testServiceClient())
	svc := NewImportService(clients, importer, tx, notifier, logger, entity.DirectionIn, 2)
	return &importFixture{svc: svc, invoices: invoices, storage: storage, periods: periods, notifier: notifier, tx: tx}
}

func TestImportServiceImport(t *testing.T) {
	ctx := context.Background()
	fx := newImportFixture()
	require.NoError(t, fx.storage.Save(ctx, "up/feed.csv", []byte(serviceInvoiceFeed)))

	summary, err := fx.svc.Import(ctx, ImportInput{
		ClientID:   "client-1",
		StorageRef: "up/feed.csv",
		FileName:   "feed.csv",
		PeriodCode: "11305",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	assert.Len(t, fx.invoices.rows, 2)
	assert.Equal(t, 1, fx.tx.calls, "each file runs in one transaction")

	require.Len(t, fx.notifier.imports, 1)
	notice := fx.notifier.imports[0]
	assert.Equal(t, "大安商行", notice.ClientName)
	assert.Equal(t, "113年05-06月", notice.PeriodLabel)
	assert.Equal(t, "feed.csv", notice.FileName)
	assert.Equal(t, 2, notice.Inserted)
}

func TestImportServiceUnknownClient(t *testing.T) {
	ctx := context.Background()
	fx := newImportFixture()

	_, err := fx.svc.Import(ctx, ImportInput{
		ClientID:   "missing",
		StorageRef: "up/feed.csv",
		FileName:   "feed.csv",
		PeriodCode: "11305",
	})
	require.ErrorIs(t, err, port.ErrClientNotFound)
	assert.Empty(t, fx.notifier.imports)
}

func TestImportServiceLockedPeriod(t *testing.T) {
	ctx := context.Background()
	fx := newImportFixture()
	fx.periods.seed("p1", "client-1", "11305", entity.PeriodStatusLocked)
	require.NoError(t, fx.storage.Save(ctx, "up/feed.csv", []byte(serviceInvoiceFeed)))

	_, err := fx.svc.Import(ctx, ImportInput{
		ClientID:   "client-1",
		StorageRef: "up/feed.csv",
		FileName:   "feed.csv",
		PeriodCode: "11305",
	})
	require.ErrorIs(t, err, port.ErrPeriodLocked)
	assert.Empty(t, fx.invoices.rows)
	assert.Empty(t, fx.notifier.imports, "a rejected file sends no notice")
}

func TestImportServiceNotifierFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	fx := newImportFixture()
	fx.notifier.err = assert.AnError
	require.NoError(t, fx.storage.Save(ctx, "up/feed.csv", []byte(serviceInvoiceFeed)))

	summary, err := fx.svc.Import(ctx, ImportInput{
		ClientID:   "client-1",
		StorageRef: "up/feed.csv",
		FileName:   "feed.csv",
		PeriodCode: "11305",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
}

func TestImportServiceImportBatch(t *testing.T) {
	ctx := context.Background()
	fx := newImportFixture()
	require.NoError(t, fx.storage.Save(ctx, "up/feed.csv", []byte(serviceInvoiceFeed)))
	require.NoError(t, fx.storage.Save(ctx, "up/junk.bin", []byte("just a plain sentence")))

	outcomes := fx.svc.ImportBatch(ctx, []ImportInput{
		{ClientID: "client-1", StorageRef: "up/feed.csv", FileName: "feed.csv", PeriodCode: "11305"},
		{ClientID: "client-1", StorageRef: "up/junk.bin", FileName: "junk.bin", PeriodCode: "11305"},
		{ClientID: "missing", StorageRef: "up/feed.csv", FileName: "feed.csv", PeriodCode: "11305"},
	})

	require.Len(t, outcomes, 3)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Summary.Inserted)
	require.ErrorIs(t, outcomes[1].Err, reconcile.ErrUnsupportedFileFormat)
	require.ErrorIs(t, outcomes[2].Err, port.ErrClientNotFound)

	assert.Len(t, fx.invoices.rows, 2)
	require.Len(t, fx.notifier.imports, 1, "only the successful file sends a notice")
}
