package service

import (
	"context"
	"fmt"

	"github.com/cassianoaxe/endurancy/internal/shared/whatsapp"
	"github.com/cassianoaxe/endurancy/internal/trace/entity"
	"go.uber.org/zap"
)

// Notifier pushes operational alerts to the compliance WhatsApp group.
// A nil whatsapp client or empty chat ID disables delivery; callers
// never see a notification failure as an operation failure.
type Notifier struct {
	wa     *whatsapp.Client
	chatID string
	logger *zap.Logger
}

func NewNotifier(wa *whatsapp.Client, chatID string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{wa: wa, chatID: chatID, logger: logger}
}

func (n *Notifier) enabled() bool {
	return n != nil && n.wa != nil && n.chatID != ""
}

func (n *Notifier) send(ctx context.Context, text string) {
	if !n.enabled() {
		return
	}
	if err := n.wa.SendTextMessage(ctx, n.chatID, text); err != nil {
		n.logger.Warn("whatsapp notification failed", zap.Error(err))
	}
}

// DisposalRequested alerts approvers that a write-off awaits review.
func (n *Notifier) DisposalRequested(ctx context.Context, d *entity.Disposal, item *entity.InventoryItem) {
	n.send(ctx, fmt.Sprintf(
		"🗑 Disposal requested: %.4f %s of %s (batch %s), reason %s. Approval pending.",
		d.Quantity, d.Unit, item.Code, item.BatchNumber, d.Reason))
}

// LowStock alerts when an item crosses its minimum threshold.
func (n *Notifier) LowStock(ctx context.Context, item *entity.InventoryItem) {
	n.send(ctx, fmt.Sprintf(
		"⚠️ Low stock: %s (%s) is at %.4f %s, minimum is %.4f.",
		item.Name, item.Code, item.Quantity, item.Unit, item.MinThreshold))
}
