package service

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/report"
)

// ExportResult carries the stored paths of one period's declaration files.
type ExportResult struct {
	TxtPath  string `json:"txt_path"`
	TetUPath string `json:"tetu_path"`
}

// ReportService renders the government declaration artifacts for a client's
// period and optionally persists them through file storage.
type ReportService interface {
	GenerateTxt(ctx context.Context, clientID, periodCode string) (string, error)
	GenerateTetU(ctx context.Context, clientID, periodCode string, cfg report.DeclarationConfig) (string, error)
	ExportPeriod(ctx context.Context, clientID, periodCode string, cfg report.DeclarationConfig) (*ExportResult, error)
}

type reportServiceImpl struct {
	txtGen  *report.TxtGenerator
	tetuGen *report.TetUGenerator
	storage port.FileStorage
	logger  *zap.Logger
}

// NewReportService creates a ReportService.
func NewReportService(
	txtGen *report.TxtGenerator,
	tetuGen *report.TetUGenerator,
	storage port.FileStorage,
	logger *zap.Logger,
) ReportService {
	return &reportServiceImpl{
		txtGen:  txtGen,
		tetuGen: tetuGen,
		storage: storage,
		logger:  logger,
	}
}

func (s *reportServiceImpl) GenerateTxt(ctx context.Context, clientID, periodCode string) (string, error) {
	return s.txtGen.Generate(ctx, clientID, periodCode)
}

func (s *reportServiceImpl) GenerateTetU(ctx context.Context, clientID, periodCode string, cfg report.DeclarationConfig) (string, error) {
	return s.tetuGen.Generate(ctx, clientID, periodCode, cfg)
}

// ExportPeriod generates both artifacts and writes them to storage under
// the client's directory as {period}.TXT and {period}.TET_U. Both files are
// written even when the media feed is empty, so the export always yields a
// complete upload set.
func (s *reportServiceImpl) ExportPeriod(ctx context.Context, clientID, periodCode string, cfg report.DeclarationConfig) (*ExportResult, error) {
	txt, err := s.txtGen.Generate(ctx, clientID, periodCode)
	if err != nil {
		return nil, err
	}
	tetu, err := s.tetuGen.Generate(ctx, clientID, periodCode, cfg)
	if err != nil {
		return nil, err
	}

	txtPath := filepath.Join(clientID, periodCode+".TXT")
	if err := s.storage.Save(ctx, txtPath, []byte(txt)); err != nil {
		return nil, fmt.Errorf("save %s: %w", txtPath, err)
	}
	tetuPath := filepath.Join(clientID, periodCode+".TET_U")
	if err := s.storage.Save(ctx, tetuPath, []byte(tetu)); err != nil {
		return nil, fmt.Errorf("save %s: %w", tetuPath, err)
	}

	s.logger.Info("period exported",
		zap.String("client_id", clientID),
		zap.String("period", periodCode),
		zap.String("txt", txtPath),
		zap.String("tetu", tetuPath))
	return &ExportResult{TxtPath: txtPath, TetUPath: tetuPath}, nil
}
