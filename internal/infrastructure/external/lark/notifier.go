package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
)

// Notifier implements port.Notifier by posting text messages to the firm's
// Lark chat group.
type Notifier struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(sdk *SDKClient, logger *zap.Logger) port.Notifier {
	return &Notifier{
		sdk:    sdk,
		logger: logger,
	}
}

// ImportCompleted posts a summary of a finished reconciliation import.
func (n *Notifier) ImportCompleted(ctx context.Context, notice port.ImportNotice) error {
	var b strings.Builder
	fmt.Fprintf(&b, "對帳匯入完成：%s %s\n", notice.ClientName, notice.PeriodLabel)
	fmt.Fprintf(&b, "檔案：%s (%s)\n", notice.FileName, notice.FileType)
	fmt.Fprintf(&b, "新增 %d 筆、更新 %d 筆、失敗 %d 筆", notice.Inserted, notice.Updated, notice.Failed)
	for _, msg := range notice.Errors {
		fmt.Fprintf(&b, "\n- %s", msg)
	}
	return n.sendText(ctx, b.String())
}

// PeriodFiled announces that a period's declaration has been marked filed.
func (n *Notifier) PeriodFiled(ctx context.Context, notice port.FiledNotice) error {
	return n.sendText(ctx, fmt.Sprintf("申報完成：%s %s 已註記申報", notice.ClientName, notice.PeriodLabel))
}

func (n *Notifier) sendText(ctx context.Context, text string) error {
	if n.sdk.GetChatID() == "" {
		return fmt.Errorf("chat ID not configured")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.sdk.GetChatID()).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("chat_id", n.sdk.GetChatID()),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("chat_id", n.sdk.GetChatID()),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	n.logger.Debug("Notice sent", zap.String("chat_id", n.sdk.GetChatID()))
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
