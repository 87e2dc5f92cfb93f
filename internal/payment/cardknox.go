package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rongwang/rentledger-server/internal/metrics"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const recurringAPIVersion = "2.1"

// CardknoxConfig holds endpoints and credentials
type CardknoxConfig struct {
	// GatewayURL is the transaction JSON endpoint used for tokenization.
	GatewayURL string
	// APIURL is the base of the customer/payment-method API.
	APIURL          string
	APIKey          string
	SoftwareName    string
	SoftwareVersion string
	Timeout         time.Duration
}

// CardknoxClient implements Gateway against the Cardknox JSON APIs. Calls
// are not retried; a failed charge surfaces as models.ErrGateway.
type CardknoxClient struct {
	cfg    CardknoxConfig
	http   *http.Client
	logger *utils.Logger
}

// NewCardknoxClient creates a client whose transport is traced
func NewCardknoxClient(cfg CardknoxConfig, logger *utils.Logger) *CardknoxClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CardknoxClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type createCustomerRequest struct {
	SoftwareName    string
	SoftwareVersion string
	BillFirstName   string
	BillMiddleName  string
	BillLastName    string
	Email           string
}

type createCustomerResponse struct {
	RefNum     string
	Result     string
	Error      string
	CustomerId string
}

type tokenizeRequest struct {
	XKey             string `json:"xKey"`
	XVersion         string `json:"xVersion"`
	XSoftwareName    string `json:"xSoftwareName"`
	XSoftwareVersion string `json:"xSoftwareVersion"`
	XCommand         string `json:"xCommand"`
	XCardNum         string `json:"xCardNum"`
	XExp             string `json:"xExp"`
	XCVV             string `json:"xCVV,omitempty"`
	XName            string `json:"xName,omitempty"`
	XEmail           string `json:"xEmail,omitempty"`
}

type tokenizeResponse struct {
	XResult string `json:"xResult"`
	XStatus string `json:"xStatus"`
	XError  string `json:"xError"`
	XRefNum string `json:"xRefNum"`
	XToken  string `json:"xToken"`
}

type createMethodRequest struct {
	SoftwareName    string
	SoftwareVersion string
	CustomerId      string
	Token           string
	TokenType       string
	Exp             string
	SetAsDefault    bool
}

type createMethodResponse struct {
	RefNum          string
	Result          string
	Error           string
	PaymentMethodId string
}

type processRequest struct {
	SoftwareName    string
	SoftwareVersion string
	PaymentMethodId string
	Amount          string
	Description     string
}

type processResponse struct {
	RefNum              string
	Result              string
	Error               string
	GatewayRefNum       string
	GatewayStatus       string
	GatewayErrorMessage string
}

type deleteMethodRequest struct {
	SoftwareName    string
	SoftwareVersion string
	PaymentMethodId string
}

type deleteMethodResponse struct {
	RefNum string
	Result string
	Error  string
}

// CreateCustomer registers a customer record
func (c *CardknoxClient) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	var res createCustomerResponse
	err := c.post(ctx, "create_customer", c.apiURL("CreateCustomer"), true, createCustomerRequest{
		SoftwareName:    c.cfg.SoftwareName,
		SoftwareVersion: c.cfg.SoftwareVersion,
		BillFirstName:   name,
		Email:           email,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.Result != "S" || res.CustomerId == "" {
		return "", fmt.Errorf("%w: error while creating customer: %s", models.ErrGateway, res.Error)
	}
	return res.CustomerId, nil
}

// Charge tokenizes the card, attaches it to the customer, runs the
// transaction and removes the stored payment method again.
func (c *CardknoxClient) Charge(ctx context.Context, req ChargeRequest) (*Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", models.ErrValidation)
	}

	customerID := req.CustomerID
	if customerID == "" {
		id, err := c.CreateCustomer(ctx, req.Name, req.Email)
		if err != nil {
			return nil, err
		}
		customerID = id
	}

	var token tokenizeResponse
	err := c.post(ctx, "tokenize", c.cfg.GatewayURL, false, tokenizeRequest{
		XKey:             c.cfg.APIKey,
		XVersion:         "5.0.0",
		XSoftwareName:    c.cfg.SoftwareName,
		XSoftwareVersion: c.cfg.SoftwareVersion,
		XCommand:         "cc:save",
		XCardNum:         req.CardNumber,
		XExp:             req.Exp,
		XCVV:             req.CVV,
		XName:            req.Name,
		XEmail:           req.Email,
	}, &token)
	if err != nil {
		return nil, err
	}
	if token.XResult != "A" || token.XToken == "" {
		return nil, fmt.Errorf("%w: card was not accepted: %s", models.ErrGateway, token.XError)
	}

	var method createMethodResponse
	err = c.post(ctx, "create_payment_method", c.apiURL("CreatePaymentMethod"), true, createMethodRequest{
		SoftwareName:    c.cfg.SoftwareName,
		SoftwareVersion: c.cfg.SoftwareVersion,
		CustomerId:      customerID,
		Token:           token.XToken,
		TokenType:       "cc",
		Exp:             req.Exp,
	}, &method)
	if err != nil {
		return nil, err
	}
	if method.Result != "S" || method.PaymentMethodId == "" {
		return nil, fmt.Errorf("%w: error while creating payment method: %s", models.ErrGateway, method.Error)
	}

	// the payment method only exists for this transaction
	defer c.deleteMethod(context.WithoutCancel(ctx), method.PaymentMethodId)

	var processed processResponse
	err = c.post(ctx, "process_transaction", c.apiURL("ProcessTransaction"), true, processRequest{
		SoftwareName:    c.cfg.SoftwareName,
		SoftwareVersion: c.cfg.SoftwareVersion,
		PaymentMethodId: method.PaymentMethodId,
		Amount:          req.Amount.StringFixed(2),
		Description:     req.Description,
	}, &processed)
	if err != nil {
		return nil, err
	}
	if processed.Result != "S" {
		msg := processed.GatewayErrorMessage
		if msg == "" {
			msg = processed.Error
		}
		return nil, fmt.Errorf("%w: transaction declined: %s", models.ErrGateway, msg)
	}

	return &Transaction{
		RefNum:        processed.RefNum,
		GatewayRefNum: processed.GatewayRefNum,
		GatewayStatus: processed.GatewayStatus,
		CustomerID:    customerID,
	}, nil
}

func (c *CardknoxClient) deleteMethod(ctx context.Context, id string) {
	var res deleteMethodResponse
	err := c.post(ctx, "delete_payment_method", c.apiURL("DeletePaymentMethod"), true, deleteMethodRequest{
		SoftwareName:    c.cfg.SoftwareName,
		SoftwareVersion: c.cfg.SoftwareVersion,
		PaymentMethodId: id,
	}, &res)
	if err == nil && res.Result != "S" {
		err = fmt.Errorf("result %q: %s", res.Result, res.Error)
	}
	if err != nil {
		c.logger.Warn("failed to delete payment method", "paymentMethodId", id, "error", err)
	}
}

func (c *CardknoxClient) apiURL(op string) string {
	return strings.TrimRight(c.cfg.APIURL, "/") + "/" + op
}

// post sends one JSON request and decodes the JSON response into out
func (c *CardknoxClient) post(ctx context.Context, op, url string, recurring bool, in, out interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall(op, err, time.Since(start)) }()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode %s request: %v", models.ErrGateway, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", models.ErrGateway, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if recurring {
		req.Header.Set("X-Recurring-Api-Version", recurringAPIVersion)
		req.Header.Set("Authorization", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrGateway, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", models.ErrGateway, op, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", models.ErrGateway, op, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", models.ErrGateway, op, err)
	}
	return nil
}
