package port

import "context"

// ImportNotice summarizes one finished import run for the firm's chat group.
type ImportNotice struct {
	ClientName  string
	PeriodLabel string
	FileName    string
	FileType    string
	Inserted    int
	Updated     int
	Failed      int
	Errors      []string
}

// FiledNotice announces that a period's declaration has been marked filed.
type FiledNotice struct {
	ClientName  string
	PeriodLabel string
}

// Notifier delivers operational notices to the firm. Implementations are
// best-effort; callers log failures and continue.
type Notifier interface {
	ImportCompleted(ctx context.Context, notice ImportNotice) error
	PeriodFiled(ctx context.Context, notice FiledNotice) error
}
