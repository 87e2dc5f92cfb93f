package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/rongwang/rentledger-server/internal/api/testutils"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type portfolio struct {
	propertyID string
	unitID     string
}

func setupPortfolio(t *testing.T, testCtx *testutils.TestContext) portfolio {
	t.Helper()
	headers := testutils.AuthHeaders(testCtx.ManagerToken)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/properties",
		models.AddPropertyRequest{Name: "Elm Court", Address: "1 Elm St", City: "Springfield", TotalUnits: 4}, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var propertyResp struct {
		Property models.Property `json:"property"`
	}
	testutils.DecodeJSON(t, w, &propertyResp)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/units",
		models.AddUnitRequest{PropertyID: propertyResp.Property.ID, UnitNumber: "1A"}, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var unitResp struct {
		Unit models.Unit `json:"unit"`
	}
	testutils.DecodeJSON(t, w, &unitResp)

	return portfolio{propertyID: propertyResp.Property.ID, unitID: unitResp.Unit.ID}
}

func addProspect(t *testing.T, testCtx *testutils.TestContext, p portfolio) string {
	t.Helper()
	approved := false
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/prospects",
		models.AddProspectRequest{Name: "Pat Prospect", Email: "pat@example.test", PropertyID: p.propertyID, UnitID: p.unitID, IsApproved: &approved},
		testutils.AuthHeaders(testCtx.ManagerToken))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Prospect models.Prospect `json:"prospect"`
	}
	testutils.DecodeJSON(t, w, &resp)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPut,
		fmt.Sprintf("/api/prospects/%s/approval", resp.Prospect.ID),
		models.ProspectApprovalRequest{IsApproved: true},
		testutils.AuthHeaders(testCtx.ManagerToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return resp.Prospect.ID
}

func leaseRequest(p portfolio, prospectID, start, end, email string) models.AddLeaseRequest {
	return models.AddLeaseRequest{
		LeaseStart: start,
		LeaseEnd:   end,
		RentCharges: []models.RentChargeInput{
			{Amount: decimal.NewFromInt(100), Description: "Rent", Frequency: models.FrequencyMonthly, PaymentDay: 1},
		},
		Tenant:     models.TenantInput{Name: "Tia Tenant", Email: email, Password: "password123"},
		PropertyID: p.propertyID,
		UnitID:     p.unitID,
		ProspectID: prospectID,
	}
}

func TestLeaseLifecycle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	headers := testutils.AuthHeaders(testCtx.ManagerToken)
	p := setupPortfolio(t, testCtx)

	// Add an active lease
	req := leaseRequest(p, addProspect(t, testCtx, p), "2024-01-01", "2024-12-31", "tenant@acme.test")
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var lease models.LeaseResponse
	testutils.DecodeJSON(t, w, &lease)
	assert.Equal(t, models.LeaseStatusActive, lease.Lease.Status)
	assert.Len(t, lease.Ledgers, 12)

	// The tenant logs in and pays
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Email: "tenant@acme.test", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tenantAuth models.AuthResponse
	testutils.DecodeJSON(t, w, &tenantAuth)
	assert.Equal(t, models.RoleTenant, tenantAuth.Role)

	income := models.AddIncomeRequest{
		Date: "2024-03-10", Description: "Rent", Amount: decimal.NewFromInt(150),
		CardNumber: "4111111111111111", Exp: "1230", CVV: "123", LeaseID: lease.Lease.ID,
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/incomes", income, testutils.AuthHeaders(tenantAuth.Token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var incomeResp models.IncomeResponse
	testutils.DecodeJSON(t, w, &incomeResp)
	assert.Len(t, incomeResp.Applied, 2)

	// Tenants cannot end leases
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/leases/%s/end", lease.Lease.ID), nil, testutils.AuthHeaders(tenantAuth.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Overpayment is a conflict
	income.Amount = decimal.NewFromInt(5000)
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/incomes", income, headers)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Renew
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/leases/%s/renew", lease.Lease.ID),
		models.RenewLeaseRequest{LeaseEnd: "2025-06-30", RentCharges: req.RentCharges}, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var renewed models.LeaseResponse
	testutils.DecodeJSON(t, w, &renewed)
	assert.Len(t, renewed.Ledgers, 18)

	// End
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/leases/%s/end", lease.Lease.ID), nil, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		fmt.Sprintf("/api/units/%s/occupancy", p.unitID), nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	var occupancy models.UnitOccupancyResponse
	testutils.DecodeJSON(t, w, &occupancy)
	assert.False(t, occupancy.Unit.IsOccupied)
	assert.Nil(t, occupancy.CurrentLease)
	assert.Len(t, occupancy.LeaseHistory, 1)
}

func TestAddLeaseErrors(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	headers := testutils.AuthHeaders(testCtx.ManagerToken)
	p := setupPortfolio(t, testCtx)

	// Lease end must be a month end
	req := leaseRequest(p, addProspect(t, testCtx, p), "2024-01-01", "2024-02-15", "tenant@acme.test")
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing rent charges fail binding
	req.LeaseEnd = "2024-12-31"
	req.RentCharges = nil
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = leaseRequest(p, req.ProspectID, "2024-01-01", "2024-12-31", "tenant@acme.test")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Overlapping dates
	overlap := leaseRequest(p, addProspect(t, testCtx, p), "2024-06-01", "2024-12-31", "other@acme.test")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", overlap, headers)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown lease
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases/does-not-exist/start", nil, headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFutureLeaseStartAndCancel(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	headers := testutils.AuthHeaders(testCtx.ManagerToken)
	p := setupPortfolio(t, testCtx)

	req := leaseRequest(p, addProspect(t, testCtx, p), "2024-05-01", "2024-08-31", "first@acme.test")
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.LeaseResponse
	testutils.DecodeJSON(t, w, &first)
	assert.Equal(t, models.LeaseStatusPending, first.Lease.Status)
	assert.Empty(t, first.Ledgers)

	req = leaseRequest(p, addProspect(t, testCtx, p), "2024-09-01", "2024-12-31", "second@acme.test")
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second models.LeaseResponse
	testutils.DecodeJSON(t, w, &second)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete,
		fmt.Sprintf("/api/leases/%s/move-in", second.Lease.ID), nil, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/leases/%s/start", first.Lease.ID), nil, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var started models.LeaseResponse
	testutils.DecodeJSON(t, w, &started)
	assert.Equal(t, models.LeaseStatusActive, started.Lease.Status)
	assert.Equal(t, "2024-03-10", started.Lease.LeaseStart)
	assert.Len(t, started.Ledgers, 6)

	// Starting twice is a conflict
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/leases/%s/start", first.Lease.ID), nil, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAddIncomeGatewayFailure(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	headers := testutils.AuthHeaders(testCtx.ManagerToken)
	p := setupPortfolio(t, testCtx)

	req := leaseRequest(p, addProspect(t, testCtx, p), "2024-01-01", "2024-12-31", "tenant@acme.test")
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/leases", req, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lease models.LeaseResponse
	testutils.DecodeJSON(t, w, &lease)

	testCtx.Gateway.Err = fmt.Errorf("%w: card declined", models.ErrGateway)
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/incomes", models.AddIncomeRequest{
		Date: "2024-03-10", Description: "Rent", Amount: decimal.NewFromInt(100),
		CardNumber: "4111111111111111", Exp: "1230", CVV: "123", LeaseID: lease.Lease.ID,
	}, headers)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, fmt.Sprintf("/api/leases/%s", lease.Lease.ID), nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	var stored models.LeaseResponse
	testutils.DecodeJSON(t, w, &stored)
	for _, entry := range stored.Ledgers {
		assert.False(t, entry.IsPaid)
		assert.True(t, entry.Balance.Equal(entry.Amount))
	}
}
