// Package worker runs the daily notification sweeps over leases and ledgers.
// Sweeps only read; they never touch balances or lease state.
package worker

import (
	"context"

	"github.com/rongwang/rentledger-server/internal/utils"
)

// Notification kinds, also used as metric labels
const (
	KindUpcomingPayment = "upcoming_payment"
	KindUnpaidTenant    = "unpaid_tenant"
	KindUnpaidManager   = "unpaid_manager"
	KindExpiredLease    = "expired_lease"
	KindOverdueMoveIn   = "overdue_move_in"
	KindUpcomingMoveIn  = "upcoming_move_in"
)

// Message is one outbound notification
type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

// Sender delivers composed messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the application log instead of delivering
// them. It is the default until a mail or SMS provider is configured.
type LogSender struct {
	logger *utils.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *utils.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("notification",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}
