package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rongwang/rentledger-server/internal/metrics"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/utils"
)

// NotifierConfig configures the daily sweeps
type NotifierConfig struct {
	// Hour of day, in Location, at which the sweeps run.
	Hour     int
	Location *time.Location
	// GraceBusinessDays is how many weekdays a ledger may be past due before
	// it is reported as unpaid.
	GraceBusinessDays int
	// UpcomingPaymentDays are offsets from today for payment reminders.
	UpcomingPaymentDays []int
	// UpcomingMoveInDays are offsets from today for move-in reminders.
	UpcomingMoveInDays []int
	// DedupeTTL bounds how long a sent notification suppresses a resend.
	DedupeTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Notifier composes and sends the daily payment and lease notifications
type Notifier struct {
	notices repository.NoticeRepository
	sender  Sender
	deduper Deduper
	logger  *utils.Logger
	cfg     NotifierConfig
}

// NewNotifier creates a Notifier, filling in defaults for unset config
func NewNotifier(notices repository.NoticeRepository, sender Sender, deduper Deduper, logger *utils.Logger, cfg NotifierConfig) *Notifier {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.UpcomingPaymentDays == nil {
		cfg.UpcomingPaymentDays = []int{0, 3, 7}
	}
	if cfg.UpcomingMoveInDays == nil {
		cfg.UpcomingMoveInDays = []int{14, 7, 1, 0}
	}
	if cfg.DedupeTTL == 0 {
		cfg.DedupeTTL = 36 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deduper == nil {
		deduper = NewMemoryDeduper()
	}
	return &Notifier{
		notices: notices,
		sender:  sender,
		deduper: deduper,
		logger:  logger.With("component", "notifier"),
		cfg:     cfg,
	}
}

// Start runs the sweeps once a day at the configured hour until ctx is
// cancelled
func (n *Notifier) Start(ctx context.Context) {
	n.logger.Info("notifier started", "hour", n.cfg.Hour, "zone", n.cfg.Location.String())

	for {
		next := NextRun(n.cfg.Now(), n.cfg.Hour, n.cfg.Location)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			n.logger.Info("notifier stopped")
			return
		case <-timer.C:
			if err := n.RunOnce(ctx); err != nil {
				n.logger.Error("notification sweep failed", "error", err)
			}
		}
	}
}

// NextRun returns the first moment after now that falls on hour:00 in loc
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce runs every sweep for today. A failing sweep does not stop the
// others; their errors are joined.
func (n *Notifier) RunOnce(ctx context.Context) error {
	now := n.cfg.Now()
	today := utils.Today(now, n.cfg.Location)

	sweeps := []struct {
		name string
		run  func(context.Context, string) error
	}{
		{"upcoming_payments", n.upcomingPayments},
		{"unpaid_ledgers", n.unpaidLedgers},
		{"expired_leases", n.expiredLeases},
		{"overdue_move_ins", n.overdueMoveIns},
		{"upcoming_move_ins", n.upcomingMoveIns},
	}

	var errs []error
	for _, sweep := range sweeps {
		if err := sweep.run(ctx, today); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sweep.name, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) offsetDates(today string, offsets []int) ([]string, error) {
	dates := make([]string, 0, len(offsets))
	for _, offset := range offsets {
		date, err := utils.AddDays(today, offset)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, nil
}

func (n *Notifier) upcomingPayments(ctx context.Context, today string) error {
	dates, err := n.offsetDates(today, n.cfg.UpcomingPaymentDays)
	if err != nil {
		return err
	}
	rows, err := n.notices.PaymentsDueOn(ctx, dates)
	if err != nil {
		return err
	}

	for _, group := range groupByLease(rows) {
		first := group[0]
		details := make([]string, 0, len(group))
		for _, row := range group {
			details = append(details, fmt.Sprintf("%s due on %s", row.Description, row.PaymentDay))
		}

		var body strings.Builder
		fmt.Fprintf(&body, "Dear %s,\n\n", first.TenantName)
		fmt.Fprintf(&body, "This notice is regarding your residence at %s, unit %s.\n\n", first.Address, first.UnitNumber)
		fmt.Fprintf(&body, "You have the following upcoming payment(s): %s.\n\n", strings.Join(details, ", "))
		body.WriteString("If you have any questions, please contact us.\n")

		n.deliver(ctx, today, first.LeaseID, Message{
			Kind:    KindUpcomingPayment,
			To:      first.TenantEmail,
			Subject: "Upcoming rent payment",
			Body:    body.String(),
		})
	}
	return nil
}

func (n *Notifier) unpaidLedgers(ctx context.Context, today string) error {
	cutoff, err := utils.AddBusinessDays(today, -n.cfg.GraceBusinessDays)
	if err != nil {
		return err
	}
	rows, err := n.notices.UnpaidDueBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, group := range groupByLease(rows) {
		first := group[0]

		var details strings.Builder
		for _, row := range group {
			fmt.Fprintf(&details, "\nDescription: %s\nPayment Day: %s\nAmount: %s\nBalance: %s\n",
				row.Description, row.PaymentDay, row.Amount.StringFixed(2), row.Balance.StringFixed(2))
		}

		n.deliver(ctx, today, first.LeaseID, Message{
			Kind:    KindUnpaidTenant,
			To:      first.TenantEmail,
			Subject: "Unpaid balance on your lease",
			Body: fmt.Sprintf("Dear %s,\n\nThis notice is regarding your residence at %s, unit %s.\n\nYou have an unpaid balance that needs your attention.\n\nDetails:%s",
				first.TenantName, first.Address, first.UnitNumber, details.String()),
		})
		n.deliver(ctx, today, first.LeaseID, Message{
			Kind:    KindUnpaidManager,
			To:      first.CompanyEmail,
			Subject: "Tenant with outstanding balance",
			Body: fmt.Sprintf("Tenant %s, residing at %s, unit %s, has an outstanding balance that requires your attention.\n\nDetails:%s",
				first.TenantName, first.Address, first.UnitNumber, details.String()),
		})
	}
	return nil
}

func (n *Notifier) expiredLeases(ctx context.Context, today string) error {
	leases, err := n.notices.ExpiredLeases(ctx, today)
	if err != nil {
		return err
	}
	for _, lease := range leases {
		n.deliver(ctx, today, lease.LeaseID, Message{
			Kind:    KindExpiredLease,
			To:      lease.CompanyEmail,
			Subject: "An expired lease needs your attention",
			Body: fmt.Sprintf("The lease for %s, unit %s ended on %s, but today is %s. The lease should have been ended by now.\n",
				lease.Address, lease.UnitNumber, lease.LeaseEnd, today),
		})
	}
	return nil
}

func (n *Notifier) overdueMoveIns(ctx context.Context, today string) error {
	leases, err := n.notices.OverdueMoveIns(ctx, today)
	if err != nil {
		return err
	}
	for _, lease := range leases {
		n.deliver(ctx, today, lease.LeaseID, Message{
			Kind:    KindOverdueMoveIn,
			To:      lease.CompanyEmail,
			Subject: "An upcoming lease requires action",
			Body: fmt.Sprintf("The lease of %s for %s, unit %s was due to start on %s, but today is %s. The lease should have been started by now.\n",
				lease.TenantName, lease.Address, lease.UnitNumber, lease.LeaseStart, today),
		})
	}
	return nil
}

func (n *Notifier) upcomingMoveIns(ctx context.Context, today string) error {
	dates, err := n.offsetDates(today, n.cfg.UpcomingMoveInDays)
	if err != nil {
		return err
	}
	leases, err := n.notices.MoveInsOn(ctx, dates)
	if err != nil {
		return err
	}
	for _, lease := range leases {
		n.deliver(ctx, today, lease.LeaseID, Message{
			Kind:    KindUpcomingMoveIn,
			To:      lease.CompanyEmail,
			Subject: "A future lease is starting soon",
			Body: fmt.Sprintf("The lease of %s for %s, unit %s will start on %s.\n",
				lease.TenantName, lease.Address, lease.UnitNumber, lease.LeaseStart),
		})
	}
	return nil
}

// deliver sends msg unless the same kind was already sent for the lease
// today. Send failures are logged and counted, not returned.
func (n *Notifier) deliver(ctx context.Context, today, leaseID string, msg Message) {
	key := fmt.Sprintf("%s:%s:%s", msg.Kind, leaseID, today)
	fresh, err := n.deduper.Claim(ctx, key, n.cfg.DedupeTTL)
	if err != nil {
		// send anyway when the deduper is down
		n.logger.Warn("notification dedupe failed", "key", key, "error", err)
		fresh = true
	}
	if !fresh {
		metrics.ObserveNotification(msg.Kind, "skipped")
		return
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Error("failed to send notification", "kind", msg.Kind, "leaseId", leaseID, "error", err)
		metrics.ObserveNotification(msg.Kind, "error")
		return
	}
	metrics.ObserveNotification(msg.Kind, "sent")
}

// groupByLease groups rows by lease, keeping the order leases first appear in
func groupByLease(rows []models.PaymentNotice) [][]models.PaymentNotice {
	index := map[string]int{}
	var groups [][]models.PaymentNotice
	for _, row := range rows {
		i, ok := index[row.LeaseID]
		if !ok {
			i = len(groups)
			index[row.LeaseID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups
}
