package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/period"
	"github.com/yuchialin/vat-filing/internal/reconcile"
)

// ImportInput identifies one uploaded feed to reconcile.
type ImportInput struct {
	ClientID   string           `json:"client_id"`
	StorageRef string           `json:"storage_ref"`
	FileName   string           `json:"file_name"`
	PeriodCode string           `json:"period_code"`
	Direction  entity.Direction `json:"direction,omitempty"` // fallback for rows without one
}

// ImportOutcome pairs one input with its summary or file-scoped error.
type ImportOutcome struct {
	Input   ImportInput              `json:"input"`
	Summary *reconcile.ImportSummary `json:"summary,omitempty"`
	Err     error                    `json:"-"`
}

// ImportService runs feed imports: it resolves the client, wraps each file
// in its own transaction, and announces finished runs to the firm's chat
// group.
type ImportService interface {
	Import(ctx context.Context, input ImportInput) (*reconcile.ImportSummary, error)
	ImportBatch(ctx context.Context, inputs []ImportInput) []ImportOutcome
}

type importServiceImpl struct {
	clients          port.ClientRepository
	importer         *reconcile.Importer
	txManager        port.TransactionManager
	notifier         port.Notifier
	logger           *zap.Logger
	defaultDirection entity.Direction
	maxConcurrency   int
}

// NewImportService creates an ImportService. notifier may be nil;
// maxConcurrency <= 0 means one goroutine per file.
func NewImportService(
	clients port.ClientRepository,
	importer *reconcile.Importer,
	txManager port.TransactionManager,
	notifier port.Notifier,
	logger *zap.Logger,
	defaultDirection entity.Direction,
	maxConcurrency int,
) ImportService {
	return &importServiceImpl{
		clients:          clients,
		importer:         importer,
		txManager:        txManager,
		notifier:         notifier,
		logger:           logger,
		defaultDirection: defaultDirection,
		maxConcurrency:   maxConcurrency,
	}
}

// Import reconciles one file. All of the file's writes commit or roll back
// together; the chat notice goes out only after a successful commit and its
// failure is logged, never returned.
func (s *importServiceImpl) Import(ctx context.Context, input ImportInput) (*reconcile.ImportSummary, error) {
	client, err := s.clients.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrClientNotFound, input.ClientID)
	}
	p, err := period.FromCanonical(input.PeriodCode)
	if err != nil {
		return nil, err
	}

	direction := input.Direction
	if direction == "" {
		direction = s.defaultDirection
	}
	req := reconcile.ImportRequest{
		Client:           client,
		FirmID:           client.FirmID,
		StorageRef:       input.StorageRef,
		FileName:         input.FileName,
		Period:           p,
		DefaultDirection: direction,
	}

	var summary *reconcile.ImportSummary
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var ierr error
		summary, ierr = s.importer.Import(ctx, req)
		return ierr
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		notice := port.ImportNotice{
			ClientName:  client.Name,
			PeriodLabel: p.Label(),
			FileName:    input.FileName,
			FileType:    string(summary.FileType),
			Inserted:    summary.Inserted,
			Updated:     summary.Updated,
			Failed:      summary.Failed,
			Errors:      summary.Errors,
		}
		if nerr := s.notifier.ImportCompleted(ctx, notice); nerr != nil {
			s.logger.Warn("import notice delivery failed",
				zap.String("client_id", client.ID),
				zap.String("file", input.FileName),
				zap.Error(nerr))
		}
	}
	return summary, nil
}

// ImportBatch imports several files concurrently, each in its own
// transaction, bounded by the configured concurrency. Outcomes come back in
// input order.
func (s *importServiceImpl) ImportBatch(ctx context.Context, inputs []ImportInput) []ImportOutcome {
	outcomes := make([]ImportOutcome, len(inputs))
	limit := s.maxConcurrency
	if limit <= 0 {
		limit = len(inputs)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input ImportInput) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summary, err := s.Import(ctx, input)
			outcomes[i] = ImportOutcome{Input: input, Summary: summary, Err: err}
		}(i, input)
	}
	wg.Wait()
	return outcomes
}
