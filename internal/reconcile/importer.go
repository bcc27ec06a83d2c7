package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/period"
)

// LockGuard gates mutation by the period's lock status.
type LockGuard interface {
	EnsureEditable(ctx context.Context, clientID, periodCode string) error
}

// ImportRequest describes one uploaded feed to reconcile.
type ImportRequest struct {
	Client           *entity.Client
	FirmID           string
	StorageRef       string
	FileName         string
	Period           period.Period
	DefaultDirection entity.Direction
}

// ImportSummary reports the outcome of one file import. Failed rows carry a
// human-readable error each, prefixed with the row number and document
// reference so a UI can list them without re-parsing the file.
type ImportSummary struct {
	FileType FileType `json:"file_type"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// Importer ingests electronic invoice/allowance feeds for a client and
// period: rows are parsed, classified, and upserted by (client, serial code)
// so re-importing the same file updates records in place instead of
// duplicating them. Rows are processed sequentially in file order; a later
// row sees every earlier row's writes.
type Importer struct {
	invoices   port.InvoiceRepository
	allowances port.AllowanceRepository
	storage    port.FileStorage
	guard      LockGuard
	logger     *zap.Logger
}

// NewImporter creates an Importer.
func NewImporter(
	invoices port.InvoiceRepository,
	allowances port.AllowanceRepository,
	storage port.FileStorage,
	guard LockGuard,
	logger *zap.Logger,
) *Importer {
	return &Importer{
		invoices:   invoices,
		allowances: allowances,
		storage:    storage,
		guard:      guard,
		logger:     logger,
	}
}

// Import runs the full pipeline for one file. A locked period rejects the
// file before anything is written; afterwards failures are row-scoped and
// collected into the summary.
func (imp *Importer) Import(ctx context.Context, req ImportRequest) (*ImportSummary, error) {
	if req.Client == nil {
		return nil, fmt.Errorf("import: client is required")
	}
	if err := req.Period.Valid(); err != nil {
		return nil, err
	}
	periodCode := req.Period.Canonical()

	if err := imp.guard.EnsureEditable(ctx, req.Client.ID, periodCode); err != nil {
		return nil, err
	}

	raw, err := imp.storage.Read(ctx, req.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.StorageRef, err)
	}
	rows, err := LoadRows(raw, req.FileName)
	if err != nil {
		return nil, err
	}

	headerIdx := FindHeaderRow(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: no header row in %s", ErrUnsupportedFileFormat, req.FileName)
	}
	header := rows[headerIdx]
	data := rows[headerIdx+1:]

	fileType, cols, err := DetectFileType(header, data)
	if err != nil {
		return nil, err
	}

	imp.logger.Info("importing feed",
		zap.String("client_id", req.Client.ID),
		zap.String("period", periodCode),
		zap.String("file", req.FileName),
		zap.String("file_type", string(fileType)),
		zap.Int("rows", len(data)))

	summary := &ImportSummary{FileType: fileType, Errors: []string{}}
	for i, row := range data {
		if isBlankRow(row) {
			continue
		}
		rowNum := headerIdx + i + 2 // 1-based spreadsheet numbering
		switch fileType {
		case FileTypeInvoice:
			imp.importInvoiceRow(ctx, req, periodCode, row, cols, rowNum, summary)
		case FileTypeAllowance:
			imp.importAllowanceRow(ctx, req, periodCode, row, cols, rowNum, summary)
		}
	}

	imp.logger.Info("feed imported",
		zap.String("client_id", req.Client.ID),
		zap.String("period", periodCode),
		zap.String("file", req.FileName),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// BatchResult pairs one file's summary with its file-scoped error. Exactly
// one of the two is set.
type BatchResult struct {
	Summary *ImportSummary
	Err     error
}

// ImportBatch runs several file imports concurrently, one goroutine per
// file bounded by maxConcurrency (unbounded when <= 0). Files are mutually
// independent; results come back in request order and aggregation across
// them is the caller's concern.
func (imp *Importer) ImportBatch(ctx context.Context, reqs []ImportRequest, maxConcurrency int) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if maxConcurrency <= 0 {
		maxConcurrency = len(reqs)
	}
	sem := make(chan struct{}, maxConcurrency)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req ImportRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summary, err := imp.Import(ctx, req)
			results[i] = BatchResult{Summary: summary, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}

func (imp *Importer) importInvoiceRow(ctx context.Context, req ImportRequest, periodCode string, row []string, cols map[string]int, rowNum int, summary *ImportSummary) {
	cand, err := parseInvoiceRow(row, cols, req.Client.TaxID, req.DefaultDirection)
	if err != nil {
		imp.failRow(summary, rowNum, fieldAt(row, cols, colSerial), err)
		return
	}
	if cand.Voided {
		imp.logger.Debug("voided invoice skipped",
			zap.Int("row", rowNum), zap.String("serial", cand.SerialCode))
		return
	}

	existing, err := imp.invoices.GetBySerialCode(ctx, req.Client.ID, cand.SerialCode)
	if err != nil {
		imp.failRow(summary, rowNum, cand.SerialCode, fmt.Errorf("lookup: %w", err))
		return
	}

	if existing == nil {
		inv := &entity.Invoice{
			ID:         uuid.New().String(),
			FirmID:     req.FirmID,
			ClientID:   req.Client.ID,
			StorageRef: req.StorageRef,
			FileName:   req.FileName,
			InOrOut:    cand.Direction,
			Status:     entity.DocumentStatusProcessed,
			SerialCode: cand.SerialCode,
			PeriodCode: periodCode,
			Fields:     cand.Fields,
		}
		if err := imp.createInvoiceDegrading(ctx, inv); err != nil {
			imp.failRow(summary, rowNum, cand.SerialCode, err)
			return
		}
		summary.Inserted++
		return
	}

	if existing.Status == entity.DocumentStatusConfirmed {
		if !sameInvoiceDocument(existing, cand) {
			imp.failRow(summary, rowNum, cand.SerialCode,
				fmt.Errorf("serial code collides with a confirmed document with different content"))
			return
		}
		// identical re-import of a confirmed document: nothing to change
		summary.Updated++
		return
	}

	if len(cand.Fields.Extra) == 0 {
		cand.Fields.Extra = existing.Fields.Extra
	}
	existing.InOrOut = cand.Direction
	existing.PeriodCode = periodCode
	existing.StorageRef = req.StorageRef
	existing.FileName = req.FileName
	existing.Fields = cand.Fields
	if err := imp.invoices.Update(ctx, existing); err != nil {
		imp.failRow(summary, rowNum, cand.SerialCode, fmt.Errorf("update: %w", err))
		return
	}
	summary.Updated++
}

func (imp *Importer) importAllowanceRow(ctx context.Context, req ImportRequest, periodCode string, row []string, cols map[string]int, rowNum int, summary *ImportSummary) {
	cand, err := parseAllowanceRow(row, cols, req.Client.TaxID, req.DefaultDirection)
	if err != nil {
		imp.failRow(summary, rowNum, fieldAt(row, cols, colSerial), err)
		return
	}
	if cand.Voided {
		imp.logger.Debug("voided allowance skipped",
			zap.Int("row", rowNum), zap.String("serial", cand.SerialCode))
		return
	}

	// Link lookup runs before the write so each row needs one write only.
	// A missing original invoice is not an error; the allowance stays
	// unlinked until the invoice appears.
	originalID := ""
	if cand.OriginalInvoiceSerial != "" {
		orig, err := imp.invoices.GetBySerialCode(ctx, req.Client.ID, cand.OriginalInvoiceSerial)
		if err != nil {
			imp.failRow(summary, rowNum, cand.SerialCode, fmt.Errorf("original invoice lookup: %w", err))
			return
		}
		if orig != nil {
			originalID = orig.ID
		}
	}

	var existing *entity.Allowance
	if cand.SerialCode != "" {
		existing, err = imp.allowances.GetBySerialCode(ctx, req.Client.ID, cand.SerialCode)
		if err != nil {
			imp.failRow(summary, rowNum, cand.SerialCode, fmt.Errorf("lookup: %w", err))
			return
		}
	}

	if existing == nil {
		alw := &entity.Allowance{
			ID:                    uuid.New().String(),
			FirmID:                req.FirmID,
			ClientID:              req.Client.ID,
			StorageRef:            req.StorageRef,
			FileName:              req.FileName,
			InOrOut:               cand.Direction,
			Status:                entity.DocumentStatusProcessed,
			SerialCode:            cand.SerialCode,
			OriginalInvoiceSerial: cand.OriginalInvoiceSerial,
			OriginalInvoiceID:     originalID,
			PeriodCode:            periodCode,
			Fields:                cand.Fields,
		}
		if err := imp.createAllowanceDegrading(ctx, alw); err != nil {
			imp.failRow(summary, rowNum, cand.SerialCode, err)
			return
		}
		summary.Inserted++
		return
	}

	if existing.Status == entity.DocumentStatusConfirmed {
		if !sameAllowanceDocument(existing, cand) {
			imp.failRow(summary, rowNum, cand.SerialCode,
				fmt.Errorf("serial code collides with a confirmed document with different content"))
			return
		}
		summary.Updated++
		return
	}

	if len(cand.Fields.Extra) == 0 {
		cand.Fields.Extra = existing.Fields.Extra
	}
	existing.InOrOut = cand.Direction
	existing.PeriodCode = periodCode
	existing.StorageRef = req.StorageRef
	existing.FileName = req.FileName
	existing.OriginalInvoiceSerial = cand.OriginalInvoiceSerial
	existing.OriginalInvoiceID = originalID
	existing.Fields = cand.Fields
	if err := imp.allowances.Update(ctx, existing); err != nil {
		imp.failRow(summary, rowNum, cand.SerialCode, fmt.Errorf("update: %w", err))
		return
	}
	summary.Updated++
}

// createInvoiceDegrading inserts the invoice, and on a serial-code collision
// drops the serial and retries once. The document is still valid without its
// serial; the degraded write counts as a normal insert but is logged so
// operators can audit it.
func (imp *Importer) createInvoiceDegrading(ctx context.Context, inv *entity.Invoice) error {
	err := imp.invoices.Create(ctx, inv)
	if err == nil {
		return nil
	}
	if !errors.Is(err, port.ErrDuplicateSerialCode) {
		return fmt.Errorf("insert: %w", err)
	}
	dropped := inv.SerialCode
	inv.SerialCode = ""
	if err := imp.invoices.Create(ctx, inv); err != nil {
		return fmt.Errorf("insert after dropping serial: %w", err)
	}
	imp.logger.Warn("duplicate serial code dropped",
		zap.String("client_id", inv.ClientID),
		zap.String("serial", dropped),
		zap.String("invoice_id", inv.ID))
	return nil
}

func (imp *Importer) createAllowanceDegrading(ctx context.Context, alw *entity.Allowance) error {
	err := imp.allowances.Create(ctx, alw)
	if err == nil {
		return nil
	}
	if !errors.Is(err, port.ErrDuplicateSerialCode) {
		return fmt.Errorf("insert: %w", err)
	}
	dropped := alw.SerialCode
	alw.SerialCode = ""
	if err := imp.allowances.Create(ctx, alw); err != nil {
		return fmt.Errorf("insert after dropping serial: %w", err)
	}
	imp.logger.Warn("duplicate serial code dropped",
		zap.String("client_id", alw.ClientID),
		zap.String("serial", dropped),
		zap.String("allowance_id", alw.ID))
	return nil
}

func (imp *Importer) failRow(summary *ImportSummary, rowNum int, ref string, err error) {
	summary.Failed++
	if ref != "" {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d (%s): %v", rowNum, ref, err))
	} else {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
	}
	imp.logger.Warn("row failed",
		zap.Int("row", rowNum),
		zap.String("ref", ref),
		zap.Error(err))
}

// sameInvoiceDocument reports whether a candidate row carries the same
// material content as a stored invoice: direction, date, amounts, parties.
func sameInvoiceDocument(existing *entity.Invoice, cand *invoiceCandidate) bool {
	return existing.InOrOut == cand.Direction &&
		existing.Fields.Date == cand.Fields.Date &&
		existing.Fields.SalesAmount == cand.Fields.SalesAmount &&
		existing.Fields.TaxAmount == cand.Fields.TaxAmount &&
		existing.Fields.TotalAmount == cand.Fields.TotalAmount &&
		existing.Fields.SellerTaxID == cand.Fields.SellerTaxID &&
		existing.Fields.BuyerTaxID == cand.Fields.BuyerTaxID
}

func sameAllowanceDocument(existing *entity.Allowance, cand *allowanceCandidate) bool {
	return existing.InOrOut == cand.Direction &&
		existing.OriginalInvoiceSerial == cand.OriginalInvoiceSerial &&
		existing.Fields.Date == cand.Fields.Date &&
		existing.Fields.Amount == cand.Fields.Amount &&
		existing.Fields.TaxAmount == cand.Fields.TaxAmount &&
		existing.Fields.SellerTaxID == cand.Fields.SellerTaxID &&
		existing.Fields.BuyerTaxID == cand.Fields.BuyerTaxID
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
