package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/rentledger-server/internal/api/testutils"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRegisterCompany(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful registration
	registerReq := models.RegisterCompanyRequest{
		CompanyName: "Birch Homes",
		Email:       "owner@birch.test",
		Password:    "Password123",
		Name:        "Bea Owner",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/register", registerReq, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.AuthResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, models.RoleManager, resp.Role)
	assert.NotEmpty(t, resp.Token)

	// Test case 2: Duplicate email
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/register", registerReq, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Test case 3: Invalid request (missing required fields)
	invalidReq := models.RegisterCompanyRequest{
		Email: "invalid@example.com",
		// Missing password, name and company name
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/register", invalidReq, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful login
	loginReq := models.LoginRequest{
		Email:    "manager@acme.test",
		Password: "password123",
	}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Test case 2: Invalid credentials
	loginReq.Password = "wrongpassword"
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 3: User not found
	loginReq.Email = "nonexistent@example.com"
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	propertyReq := models.AddPropertyRequest{Name: "Elm Court", Address: "1 Elm St", City: "Springfield", TotalUnits: 1}

	// No token
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/properties", propertyReq, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/properties", propertyReq,
		map[string]string{"Authorization": testCtx.ManagerToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Token signed with another secret
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": testCtx.ManagerID, "company": testCtx.CompanyID, "role": models.RoleManager,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("not-the-secret"))
	assert.NoError(t, err)
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/properties", propertyReq, testutils.AuthHeaders(forged))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Tenant role is not allowed to manage the portfolio
	tenantToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tenant-1", "company": testCtx.CompanyID, "role": models.RoleTenant,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testCtx.JWTSecret)
	assert.NoError(t, err)
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/properties", propertyReq, testutils.AuthHeaders(tenantToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Manager token
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/properties", propertyReq, testutils.AuthHeaders(testCtx.ManagerToken))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rentledger_http_requests_total")
}
