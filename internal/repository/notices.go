package repository

import (
	"context"

	"github.com/rongwang/rentledger-server/internal/models"
)

// NoticeRepository serves the read-only projections behind the daily
// notification sweeps. It never writes.
type NoticeRepository interface {
	// PaymentsDueOn lists unpaid entries of active leases due on one of dates.
	PaymentsDueOn(ctx context.Context, dates []string) ([]models.PaymentNotice, error)
	// UnpaidDueBefore lists unpaid entries of active leases due on or before date.
	UnpaidDueBefore(ctx context.Context, date string) ([]models.PaymentNotice, error)
	// ExpiredLeases lists active leases whose end date is before today.
	ExpiredLeases(ctx context.Context, today string) ([]models.LeaseNotice, error)
	// OverdueMoveIns lists pending leases whose start date is before today.
	OverdueMoveIns(ctx context.Context, today string) ([]models.LeaseNotice, error)
	// MoveInsOn lists pending leases starting on one of dates.
	MoveInsOn(ctx context.Context, dates []string) ([]models.LeaseNotice, error)
}

type noticeRepo struct {
	q queryer
}

const paymentNoticeSelect = `
	SELECT le.lease_id, le.id AS ledger_entry_id, le.payment_day, le.description, le.amount, le.balance,
		u.name AS tenant_name, u.email AS tenant_email, c.email AS company_email, p.address, un.unit_number
	FROM ledger_entries le
	JOIN leases l ON l.id = le.lease_id
	JOIN users u ON u.id = l.tenant_id
	JOIN companies c ON c.id = l.company_id
	JOIN properties p ON p.id = l.property_id
	JOIN units un ON un.id = l.unit_id
	WHERE le.is_paid = ? AND l.status = ? AND l.is_closed = ?`

const leaseNoticeSelect = `
	SELECT l.id AS lease_id, l.lease_start, l.lease_end,
		COALESCE(u.name, l.tenant_name) AS tenant_name, c.email AS company_email, p.address, un.unit_number
	FROM leases l
	LEFT JOIN users u ON u.id = COALESCE(l.tenant_id, l.future_tenant_id)
	JOIN companies c ON c.id = l.company_id
	JOIN properties p ON p.id = l.property_id
	JOIN units un ON un.id = l.unit_id
	WHERE l.status = ? AND l.is_closed = ?`

func (r *noticeRepo) PaymentsDueOn(ctx context.Context, dates []string) ([]models.PaymentNotice, error) {
	notices := []models.PaymentNotice{}
	if len(dates) == 0 {
		return notices, nil
	}
	err := r.q.selectIn(ctx, &notices, paymentNoticeSelect+`
		AND le.payment_day IN (?)
		ORDER BY le.payment_day, le.lease_id`,
		false, models.LeaseStatusActive, false, dates)
	return notices, err
}

func (r *noticeRepo) UnpaidDueBefore(ctx context.Context, date string) ([]models.PaymentNotice, error) {
	notices := []models.PaymentNotice{}
	err := r.q.selectAll(ctx, &notices, paymentNoticeSelect+`
		AND le.payment_day <= ?
		ORDER BY le.payment_day, le.lease_id`,
		false, models.LeaseStatusActive, false, date)
	return notices, err
}

func (r *noticeRepo) ExpiredLeases(ctx context.Context, today string) ([]models.LeaseNotice, error) {
	notices := []models.LeaseNotice{}
	err := r.q.selectAll(ctx, &notices, leaseNoticeSelect+`
		AND l.lease_end < ?
		ORDER BY l.lease_end`,
		models.LeaseStatusActive, false, today)
	return notices, err
}

func (r *noticeRepo) OverdueMoveIns(ctx context.Context, today string) ([]models.LeaseNotice, error) {
	notices := []models.LeaseNotice{}
	err := r.q.selectAll(ctx, &notices, leaseNoticeSelect+`
		AND l.lease_start < ?
		ORDER BY l.lease_start`,
		models.LeaseStatusPending, false, today)
	return notices, err
}

func (r *noticeRepo) MoveInsOn(ctx context.Context, dates []string) ([]models.LeaseNotice, error) {
	notices := []models.LeaseNotice{}
	if len(dates) == 0 {
		return notices, nil
	}
	err := r.q.selectIn(ctx, &notices, leaseNoticeSelect+`
		AND l.lease_start IN (?)
		ORDER BY l.lease_start`,
		models.LeaseStatusPending, false, dates)
	return notices, err
}
