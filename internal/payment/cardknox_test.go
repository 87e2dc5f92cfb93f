package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCardknox struct {
	mu      sync.Mutex
	calls   []string
	decline bool
}

func (f *fakeCardknox) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(name string) {
		f.mu.Lock()
		f.calls = append(f.calls, name)
		f.mu.Unlock()
	}
	reply := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/gatewayjson", func(w http.ResponseWriter, r *http.Request) {
		record("tokenize")
		var req tokenizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cc:save", req.XCommand)
		reply(w, tokenizeResponse{XResult: "A", XToken: "tok-1"})
	})
	mux.HandleFunc("/v2/CreateCustomer", func(w http.ResponseWriter, r *http.Request) {
		record("create_customer")
		assert.Equal(t, "2.1", r.Header.Get("X-Recurring-Api-Version"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		reply(w, createCustomerResponse{Result: "S", CustomerId: "cust-1"})
	})
	mux.HandleFunc("/v2/CreatePaymentMethod", func(w http.ResponseWriter, r *http.Request) {
		record("create_method")
		var req createMethodRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok-1", req.Token)
		reply(w, createMethodResponse{Result: "S", PaymentMethodId: "pm-1"})
	})
	mux.HandleFunc("/v2/ProcessTransaction", func(w http.ResponseWriter, r *http.Request) {
		record("process")
		var req processRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "150.00", req.Amount)
		if f.decline {
			reply(w, processResponse{Result: "E", GatewayErrorMessage: "Declined"})
			return
		}
		reply(w, processResponse{Result: "S", RefNum: "ref-1", GatewayRefNum: "gw-1", GatewayStatus: "Approved"})
	})
	mux.HandleFunc("/v2/DeletePaymentMethod", func(w http.ResponseWriter, r *http.Request) {
		record("delete_method")
		reply(w, deleteMethodResponse{Result: "S"})
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeCardknox) *CardknoxClient {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewCardknoxClient(CardknoxConfig{
		GatewayURL: srv.URL + "/gatewayjson",
		APIURL:     srv.URL + "/v2/",
		APIKey:     "secret",
	}, utils.NewNopLogger())
}

func TestChargeHappyPath(t *testing.T) {
	fake := &fakeCardknox{}
	client := newTestClient(t, fake)

	tx, err := client.Charge(context.Background(), ChargeRequest{
		Name: "Tia Tenant", Email: "tenant@acme.test",
		Amount: decimal.NewFromInt(150), CardNumber: "4111111111111111", Exp: "1230", CVV: "123",
	})
	require.NoError(t, err)

	assert.Equal(t, "gw-1", tx.GatewayRefNum)
	assert.Equal(t, "Approved", tx.GatewayStatus)
	assert.Equal(t, "cust-1", tx.CustomerID)
	assert.Equal(t, []string{"create_customer", "tokenize", "create_method", "process", "delete_method"}, fake.calls)
}

func TestChargeDeclinedStillCleansUp(t *testing.T) {
	fake := &fakeCardknox{decline: true}
	client := newTestClient(t, fake)

	_, err := client.Charge(context.Background(), ChargeRequest{
		CustomerID: "cust-9", Amount: decimal.NewFromInt(150), CardNumber: "4111111111111111", Exp: "1230",
	})
	assert.ErrorIs(t, err, models.ErrGateway)
	assert.Contains(t, err.Error(), "Declined")
	assert.Equal(t, []string{"tokenize", "create_method", "process", "delete_method"}, fake.calls)
}

func TestChargeTransportFailure(t *testing.T) {
	client := NewCardknoxClient(CardknoxConfig{
		GatewayURL: "http://127.0.0.1:1/gatewayjson",
		APIURL:     "http://127.0.0.1:1/v2",
	}, utils.NewNopLogger())

	_, err := client.Charge(context.Background(), ChargeRequest{
		CustomerID: "cust-9", Amount: decimal.NewFromInt(10), CardNumber: "4111111111111111", Exp: "1230",
	})
	assert.ErrorIs(t, err, models.ErrGateway)
}

func TestChargeRejectsZeroAmount(t *testing.T) {
	client := newTestClient(t, &fakeCardknox{})

	_, err := client.Charge(context.Background(), ChargeRequest{CustomerID: "c", Amount: decimal.Zero})
	assert.ErrorIs(t, err, models.ErrValidation)
}
