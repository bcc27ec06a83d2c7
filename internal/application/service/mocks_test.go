package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
)

// In-memory fakes shared across the service tests.

type memClientRepo struct {
	rows map[string]*entity.Client
}

func newMemClientRepo(clients ...*entity.Client) *memClientRepo {
	m := &memClientRepo{rows: make(map[string]*entity.Client)}
	for _, c := range clients {
		m.rows[c.ID] = c
	}
	return m
}

func (m *memClientRepo) Create(_ context.Context, c *entity.Client) error {
	m.rows[c.ID] = c
	return nil
}

func (m *memClientRepo) GetByID(_ context.Context, id string) (*entity.Client, error) {
	c, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (m *memClientRepo) GetByTaxID(_ context.Context, firmID, taxID string) (*entity.Client, error) {
	for _, c := range m.rows {
		if c.FirmID == firmID && c.TaxID == taxID {
			return c, nil
		}
	}
	return nil, nil
}

type memPeriodRepo struct {
	rows map[string]*entity.TaxFilingPeriod
}

func newMemPeriodRepo() *memPeriodRepo {
	return &memPeriodRepo{rows: make(map[string]*entity.TaxFilingPeriod)}
}

func (m *memPeriodRepo) Create(_ context.Context, p *entity.TaxFilingPeriod) error {
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPeriodRepo) GetByID(_ context.Context, id string) (*entity.TaxFilingPeriod, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPeriodRepo) GetByClientPeriod(_ context.Context, clientID, periodCode string) (*entity.TaxFilingPeriod, error) {
	for _, p := range m.rows {
		if p.ClientID == clientID && p.PeriodCode == periodCode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPeriodRepo) UpdateStatus(_ context.Context, id string, status entity.PeriodStatus) error {
	p, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("filing period %s not found", id)
	}
	p.Status = status
	return nil
}

func (m *memPeriodRepo) seed(id, clientID, periodCode string, status entity.PeriodStatus) {
	m.rows[id] = &entity.TaxFilingPeriod{
		ID:         id,
		FirmID:     "firm-1",
		ClientID:   clientID,
		PeriodCode: periodCode,
		Status:     status,
	}
}

type memInvoiceRepo struct {
	rows map[string]*entity.Invoice
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{rows: make(map[string]*entity.Invoice)}
}

func (m *memInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	if inv.SerialCode != "" {
		for _, other := range m.rows {
			if other.ClientID == inv.ClientID && other.SerialCode == inv.SerialCode {
				return port.ErrDuplicateSerialCode
			}
		}
	}
	cp := *inv
	m.rows[inv.ID] = &cp
	return nil
}

func (m *memInvoiceRepo) Update(_ context.Context, inv *entity.Invoice) error {
	if _, ok := m.rows[inv.ID]; !ok {
		return fmt.Errorf("invoice %s not found", inv.ID)
	}
	cp := *inv
	m.rows[inv.ID] = &cp
	return nil
}

func (m *memInvoiceRepo) Delete(_ context.Context, id string) error {
	delete(m.rows, id)
	return nil
}

func (m *memInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	inv, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceRepo) GetBySerialCode(_ context.Context, clientID, serialCode string) (*entity.Invoice, error) {
	if serialCode == "" {
		return nil, nil
	}
	for _, inv := range m.rows {
		if inv.ClientID == clientID && inv.SerialCode == serialCode {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memInvoiceRepo) ListByClientPeriodStatus(_ context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range m.rows {
		if inv.ClientID != clientID || inv.PeriodCode != periodCode {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memInvoiceRepo) CountByClientPeriod(_ context.Context, clientID, periodCode string) (int, error) {
	n := 0
	for _, inv := range m.rows {
		if inv.ClientID == clientID && inv.PeriodCode == periodCode {
			n++
		}
	}
	return n, nil
}

type memAllowanceRepo struct {
	rows map[string]*entity.Allowance
}

func newMemAllowanceRepo() *memAllowanceRepo {
	return &memAllowanceRepo{rows: make(map[string]*entity.Allowance)}
}

func (m *memAllowanceRepo) Create(_ context.Context, alw *entity.Allowance) error {
	if alw.SerialCode != "" {
		for _, other := range m.rows {
			if other.ClientID == alw.ClientID && other.SerialCode == alw.SerialCode {
				return port.ErrDuplicateSerialCode
			}
		}
	}
	cp := *alw
	m.rows[alw.ID] = &cp
	return nil
}

func (m *memAllowanceRepo) Update(_ context.Context, alw *entity.Allowance) error {
	if _, ok := m.rows[alw.ID]; !ok {
		return fmt.Errorf("allowance %s not found", alw.ID)
	}
	cp := *alw
	m.rows[alw.ID] = &cp
	return nil
}

func (m *memAllowanceRepo) Delete(_ context.Context, id string) error {
	delete(m.rows, id)
	return nil
}

func (m *memAllowanceRepo) GetByID(_ context.Context, id string) (*entity.Allowance, error) {
	alw, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *alw
	return &cp, nil
}

func (m *memAllowanceRepo) GetBySerialCode(_ context.Context, clientID, serialCode string) (*entity.Allowance, error) {
	if serialCode == "" {
		return nil, nil
	}
	for _, alw := range m.rows {
		if alw.ClientID == clientID && alw.SerialCode == serialCode {
			cp := *alw
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAllowanceRepo) ListByClientPeriodStatus(_ context.Context, clientID, periodCode string, status entity.DocumentStatus) ([]*entity.Allowance, error) {
	var out []*entity.Allowance
	for _, alw := range m.rows {
		if alw.ClientID != clientID || alw.PeriodCode != periodCode {
			continue
		}
		if status != "" && alw.Status != status {
			continue
		}
		cp := *alw
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAllowanceRepo) ListUnlinkedByOriginalSerial(_ context.Context, clientID, originalSerial string) ([]*entity.Allowance, error) {
	var out []*entity.Allowance
	for _, alw := range m.rows {
		if alw.ClientID == clientID && alw.OriginalInvoiceSerial == originalSerial && alw.OriginalInvoiceID == "" {
			cp := *alw
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memStorage struct {
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (m *memStorage) Save(_ context.Context, path string, content []byte) error {
	m.files[path] = content
	return nil
}

func (m *memStorage) Read(_ context.Context, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return content, nil
}

func (m *memStorage) Exists(_ context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *memStorage) Delete(_ context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *memStorage) GetFullPath(relativePath string) string {
	return "/mem/" + relativePath
}

// passthroughTx runs the function directly; transaction semantics are the
// repository implementations' concern.
type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type recordingNotifier struct {
	mu      sync.Mutex
	imports []port.ImportNotice
	filed   []port.FiledNotice
	err     error
}

func (n *recordingNotifier) ImportCompleted(_ context.Context, notice port.ImportNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.imports = append(n.imports, notice)
	return n.err
}

func (n *recordingNotifier) PeriodFiled(_ context.Context, notice port.FiledNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.filed = append(n.filed, notice)
	return n.err
}

func testServiceClient() *entity.Client {
	return &entity.Client{
		ID:                    "client-1",
		FirmID:                "firm-1",
		Name:                  "大安商行",
		TaxID:                 "12345675",
		TaxRegistrationNumber: "400112345",
	}
}
