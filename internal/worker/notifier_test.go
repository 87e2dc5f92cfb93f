package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotices struct {
	dueOnDates    []string
	unpaidCutoff  string
	expiredToday  string
	moveInDates   []string
	payments      []models.PaymentNotice
	unpaid        []models.PaymentNotice
	expired       []models.LeaseNotice
	overdue       []models.LeaseNotice
	upcoming      []models.LeaseNotice
	failExpired   error
}

func (f *fakeNotices) PaymentsDueOn(ctx context.Context, dates []string) ([]models.PaymentNotice, error) {
	f.dueOnDates = dates
	return f.payments, nil
}

func (f *fakeNotices) UnpaidDueBefore(ctx context.Context, date string) ([]models.PaymentNotice, error) {
	f.unpaidCutoff = date
	return f.unpaid, nil
}

func (f *fakeNotices) ExpiredLeases(ctx context.Context, today string) ([]models.LeaseNotice, error) {
	f.expiredToday = today
	return f.expired, f.failExpired
}

func (f *fakeNotices) OverdueMoveIns(ctx context.Context, today string) ([]models.LeaseNotice, error) {
	return f.overdue, nil
}

func (f *fakeNotices) MoveInsOn(ctx context.Context, dates []string) ([]models.LeaseNotice, error) {
	f.moveInDates = dates
	return f.upcoming, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) kinds() []string {
	kinds := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

// Monday 2024-03-11, 08:00 UTC
var monday = time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)

func newTestNotifier(notices *fakeNotices, sender *recordingSender) *Notifier {
	return NewNotifier(notices, sender, NewMemoryDeduper(), utils.NewNopLogger(), NotifierConfig{
		Hour:              8,
		GraceBusinessDays: 3,
		Now:               func() time.Time { return monday },
	})
}

func ledgerRow(leaseID, day, description string, balance int64) models.PaymentNotice {
	return models.PaymentNotice{
		LeaseID:       leaseID,
		LedgerEntryID: leaseID + "-" + day,
		PaymentDay:    day,
		Description:   description,
		Amount:        decimal.NewFromInt(310),
		Balance:       decimal.NewFromInt(balance),
		TenantName:    "Tia Tenant",
		TenantEmail:   "tenant@acme.test",
		CompanyEmail:  "office@acme.test",
		Address:       "1 Elm St",
		UnitNumber:    "1A",
	}
}

func TestRunOnceQueriesWindows(t *testing.T) {
	notices := &fakeNotices{}
	n := newTestNotifier(notices, &recordingSender{})

	require.NoError(t, n.RunOnce(context.Background()))

	assert.Equal(t, []string{"2024-03-11", "2024-03-14", "2024-03-18"}, notices.dueOnDates)
	// three weekdays back from Monday skips the weekend
	assert.Equal(t, "2024-03-06", notices.unpaidCutoff)
	assert.Equal(t, "2024-03-11", notices.expiredToday)
	assert.Equal(t, []string{"2024-03-25", "2024-03-18", "2024-03-12", "2024-03-11"}, notices.moveInDates)
}

func TestUpcomingPaymentsGroupedPerLease(t *testing.T) {
	notices := &fakeNotices{payments: []models.PaymentNotice{
		ledgerRow("lease-1", "2024-03-11", "Rent", 310),
		ledgerRow("lease-2", "2024-03-11", "Rent", 310),
		ledgerRow("lease-1", "2024-03-14", "Parking", 310),
	}}
	sender := &recordingSender{}
	n := newTestNotifier(notices, sender)

	require.NoError(t, n.RunOnce(context.Background()))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "tenant@acme.test", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "Rent due on 2024-03-11, Parking due on 2024-03-14")
	assert.Contains(t, sender.sent[0].Body, "1 Elm St, unit 1A")
}

func TestUnpaidNotifiesTenantAndManager(t *testing.T) {
	notices := &fakeNotices{unpaid: []models.PaymentNotice{ledgerRow("lease-1", "2024-02-01", "Rent", 50)}}
	sender := &recordingSender{}
	n := newTestNotifier(notices, sender)

	require.NoError(t, n.RunOnce(context.Background()))

	assert.Equal(t, []string{KindUnpaidTenant, KindUnpaidManager}, sender.kinds())
	assert.Equal(t, "tenant@acme.test", sender.sent[0].To)
	assert.Equal(t, "office@acme.test", sender.sent[1].To)
	assert.Contains(t, sender.sent[0].Body, "Balance: 50.00")
	assert.Contains(t, sender.sent[1].Body, "Amount: 310.00")
}

func TestLeaseSweepsNotifyManagers(t *testing.T) {
	lease := models.LeaseNotice{
		LeaseID: "lease-9", LeaseStart: "2024-03-01", LeaseEnd: "2024-02-29",
		TenantName: "Tia Tenant", CompanyEmail: "office@acme.test", Address: "1 Elm St", UnitNumber: "1A",
	}
	notices := &fakeNotices{
		expired:  []models.LeaseNotice{lease},
		overdue:  []models.LeaseNotice{lease},
		upcoming: []models.LeaseNotice{lease},
	}
	sender := &recordingSender{}
	n := newTestNotifier(notices, sender)

	require.NoError(t, n.RunOnce(context.Background()))

	assert.Equal(t, []string{KindExpiredLease, KindOverdueMoveIn, KindUpcomingMoveIn}, sender.kinds())
	for _, msg := range sender.sent {
		assert.Equal(t, "office@acme.test", msg.To)
	}
	assert.Contains(t, sender.sent[0].Body, "ended on 2024-02-29, but today is 2024-03-11")
}

func TestRunOnceDeduplicatesWithinADay(t *testing.T) {
	notices := &fakeNotices{payments: []models.PaymentNotice{ledgerRow("lease-1", "2024-03-11", "Rent", 310)}}
	sender := &recordingSender{}
	n := newTestNotifier(notices, sender)

	require.NoError(t, n.RunOnce(context.Background()))
	require.NoError(t, n.RunOnce(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestRunOnceContinuesAfterFailedSweep(t *testing.T) {
	boom := errors.New("boom")
	notices := &fakeNotices{
		failExpired: boom,
		upcoming:    []models.LeaseNotice{{LeaseID: "lease-1", CompanyEmail: "office@acme.test"}},
	}
	sender := &recordingSender{}
	n := newTestNotifier(notices, sender)

	err := n.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{KindUpcomingMoveIn}, sender.kinds())
}

func TestNextRun(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before the hour", time.Date(2024, 3, 11, 6, 30, 0, 0, ny), time.Date(2024, 3, 11, 8, 0, 0, 0, ny)},
		{"exactly on the hour", time.Date(2024, 3, 11, 8, 0, 0, 0, ny), time.Date(2024, 3, 12, 8, 0, 0, 0, ny)},
		{"after the hour", time.Date(2024, 3, 11, 22, 0, 0, 0, ny), time.Date(2024, 3, 12, 8, 0, 0, 0, ny)},
		{"utc input", time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC), time.Date(2024, 3, 12, 8, 0, 0, 0, ny)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(NextRun(tt.now, 8, ny)), "got %s", NextRun(tt.now, 8, ny))
		})
	}
}

func TestMemoryDeduperExpires(t *testing.T) {
	d := NewMemoryDeduper()
	now := monday
	d.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := d.Claim(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Claim(ctx, "k", time.Hour)
	assert.False(t, ok)

	now = now.Add(time.Hour)
	ok, _ = d.Claim(ctx, "k", time.Hour)
	assert.True(t, ok)
}

func TestRedisDeduper(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	d, err := NewRedisDeduper(url)
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	ok, err := d.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
