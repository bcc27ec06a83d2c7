package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/application/service"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/period"
	"github.com/yuchialin/vat-filing/internal/reconcile"
	"github.com/yuchialin/vat-filing/internal/report"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type stubImportService struct {
	summary  *reconcile.ImportSummary
	err      error
	lastInput service.ImportInput
}

func (s *stubImportService) Import(_ context.Context, input service.ImportInput) (*reconcile.ImportSummary, error) {
	s.lastInput = input
	return s.summary, s.err
}

func (s *stubImportService) ImportBatch(ctx context.Context, inputs []service.ImportInput) []service.ImportOutcome {
	outcomes := make([]service.ImportOutcome, len(inputs))
	for i, input := range inputs {
		summary, err := s.Import(ctx, input)
		outcomes[i] = service.ImportOutcome{Input: input, Summary: summary, Err: err}
	}
	return outcomes
}

type stubDocumentService struct {
	service.DocumentService
	listing *service.DocumentListing
	err     error
}

func (s *stubDocumentService) ListDocuments(context.Context, string, string) (*service.DocumentListing, error) {
	return s.listing, s.err
}

type stubReportService struct {
	txt    string
	tetu   string
	export *service.ExportResult
	err    error
}

func (s *stubReportService) GenerateTxt(context.Context, string, string) (string, error) {
	return s.txt, s.err
}

func (s *stubReportService) GenerateTetU(_ context.Context, _, _ string, _ report.DeclarationConfig) (string, error) {
	return s.tetu, s.err
}

func (s *stubReportService) ExportPeriod(_ context.Context, _, _ string, _ report.DeclarationConfig) (*service.ExportResult, error) {
	return s.export, s.err
}

type stubPeriodService struct {
	record *entity.TaxFilingPeriod
	err    error
}

func (s *stubPeriodService) GetOrCreate(context.Context, string, string, string) (*entity.TaxFilingPeriod, error) {
	return s.record, s.err
}

func (s *stubPeriodService) Status(context.Context, string, string) (*entity.TaxFilingPeriod, error) {
	return s.record, s.err
}

func (s *stubPeriodService) Lock(context.Context, string, string, string) (*entity.TaxFilingPeriod, error) {
	return s.record, s.err
}

func (s *stubPeriodService) Unlock(context.Context, string, string) (*entity.TaxFilingPeriod, error) {
	return s.record, s.err
}

func (s *stubPeriodService) MarkFiled(context.Context, string, string) (*entity.TaxFilingPeriod, error) {
	return s.record, s.err
}

type serverStubs struct {
	imports   *stubImportService
	documents *stubDocumentService
	reports   *stubReportService
	periods   *stubPeriodService
}

func newTestServer() (*Server, *serverStubs) {
	gin.SetMode(gin.TestMode)
	stubs := &serverStubs{
		imports:   &stubImportService{},
		documents: &stubDocumentService{listing: &service.DocumentListing{}},
		reports:   &stubReportService{},
		periods:   &stubPeriodService{},
	}
	srv := NewServer(DefaultServerConfig(), stubs.imports, stubs.documents, stubs.reports, stubs.periods, nopLogger{})
	return srv, stubs
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer()
	rec, resp := doJSON(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestImportHandler(t *testing.T) {
	t.Run("returns summary", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.imports.summary = &reconcile.ImportSummary{Inserted: 3, Updated: 1}

		rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/imports", ImportRequest{
			StorageRef: "uploads/feed.xlsx",
			FileName:   "feed.xlsx",
			PeriodCode: "11305",
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "client-1", stubs.imports.lastInput.ClientID)
		assert.Equal(t, "11305", stubs.imports.lastInput.PeriodCode)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		srv, _ := newTestServer()
		rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/imports", gin.H{"file_name": "x.xlsx"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
	})

	t.Run("locked period maps to conflict", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.imports.err = fmt.Errorf("import: %w", port.ErrPeriodLocked)

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/imports", ImportRequest{
			StorageRef: "uploads/feed.xlsx",
			FileName:   "feed.xlsx",
			PeriodCode: "11305",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown client maps to not found", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.imports.err = fmt.Errorf("%w: nobody", port.ErrClientNotFound)

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/nobody/imports", ImportRequest{
			StorageRef: "uploads/feed.xlsx",
			FileName:   "feed.xlsx",
			PeriodCode: "11305",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unsupported format maps to bad request", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.imports.err = fmt.Errorf("feed.pdf: %w", reconcile.ErrUnsupportedFileFormat)

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/imports", ImportRequest{
			StorageRef: "uploads/feed.pdf",
			FileName:   "feed.pdf",
			PeriodCode: "11305",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestImportBatchHandler(t *testing.T) {
	t.Run("per-file outcomes", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.imports.summary = &reconcile.ImportSummary{Inserted: 2}

		rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/imports/batch", ImportBatchRequest{
			Files: []ImportRequest{
				{StorageRef: "a.xlsx", FileName: "a.xlsx", PeriodCode: "11305"},
				{StorageRef: "b.xlsx", FileName: "b.xlsx", PeriodCode: "11305"},
			},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		items, ok := resp.Data.([]interface{})
		require.True(t, ok)
		assert.Len(t, items, 2)
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		srv, _ := newTestServer()
		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/imports/batch", ImportBatchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListDocumentsHandler(t *testing.T) {
	srv, stubs := newTestServer()
	stubs.documents.listing = &service.DocumentListing{
		Invoices: []*entity.Invoice{{ID: "inv-1", SerialCode: "AB12345678"}},
	}

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/clients/client-1/periods/11305/documents", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "invoices")
	assert.Contains(t, data, "allowances")
}

func TestReportHandlers(t *testing.T) {
	t.Run("txt returns content", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.reports.txt = "row-one\r\n"

		rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/11305/reports/txt", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "row-one\r\n", data["content"])
	})

	t.Run("tetu accepts declaration config", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.reports.tetu = "401|..."

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/11305/reports/tetu",
			report.DeclarationConfig{DeclarerName: "王小明", RefundMethod: 1})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("export returns stored paths", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.reports.export = &service.ExportResult{TxtPath: "client-1/11305.TXT", TetUPath: "client-1/11305.TET_U"}

		rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/11305/reports/export", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "client-1/11305.TXT", data["txt_path"])
	})

	t.Run("bad period code maps to bad request", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.reports.err = fmt.Errorf("parse period: %w", period.ErrInvalidFormat)

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/nope/reports/txt", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPeriodHandlers(t *testing.T) {
	t.Run("lock returns record", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.periods.record = &entity.TaxFilingPeriod{
			ID: "fp-1", ClientID: "client-1", PeriodCode: "11305", Status: entity.PeriodStatusLocked,
		}

		rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/11305/lock",
			PeriodRequest{FirmID: "firm-1"})

		assert.Equal(t, http.StatusOK, rec.Code)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "locked", data["status"])
	})

	t.Run("filed period cannot reopen", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.periods.err = fmt.Errorf("%w: filed to open", port.ErrInvalidTransition)

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/11305/unlock", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing period record maps to not found", func(t *testing.T) {
		srv, stubs := newTestServer()
		stubs.periods.err = fmt.Errorf("%w: client-1/11305", port.ErrPeriodNotFound)

		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/clients/client-1/periods/11305/file", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
