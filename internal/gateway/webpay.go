package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paygate_backend/internal/models"
)

const (
	WebpayName = "webpay"

	// WebpayIntegrationURL is Transbank's public integration environment.
	WebpayIntegrationURL = "https://webpay3gint.transbank.cl"

	webpayTransactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"

	// Transbank rejects buy orders longer than this.
	WebpayMaxBuyOrder = 26
)

type WebpayConfig struct {
	BaseURL      string
	CommerceCode string
	APIKey       string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// WebpayClient drives Webpay Plus through the Transbank REST API.
type WebpayClient struct {
	baseURL      string
	commerceCode string
	apiKey       string
	http         *http.Client
}

func NewWebpayClient(cfg WebpayConfig) *WebpayClient {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = WebpayIntegrationURL
	}
	return &WebpayClient{
		baseURL:      base,
		commerceCode: cfg.CommerceCode,
		apiKey:       cfg.APIKey,
		http:         hc,
	}
}

func (c *WebpayClient) Name() string        { return WebpayName }
func (c *WebpayClient) DisplayName() string { return "Webpay Plus" }

type webpayCreateBody struct {
	BuyOrder  string  `json:"buy_order"`
	SessionID string  `json:"session_id"`
	Amount    float64 `json:"amount"`
	ReturnURL string  `json:"return_url"`
}

type webpayCreateResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type webpayCommitResponse struct {
	VCI               string  `json:"vci"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status"`
	BuyOrder          string  `json:"buy_order"`
	SessionID         string  `json:"session_id"`
	AuthorizationCode string  `json:"authorization_code"`
	PaymentTypeCode   string  `json:"payment_type_code"`
	ResponseCode      int     `json:"response_code"`
	TransactionDate   string  `json:"transaction_date"`
}

func (c *WebpayClient) CreatePayment(ctx context.Context, req CreateRequest) (*Redirect, error) {
	if len(req.BuyerRef) > WebpayMaxBuyOrder {
		return nil, &Error{
			Gateway:   WebpayName,
			Operation: OperationCreate,
			Detail:    fmt.Sprintf("buy_order must be at most %d characters", WebpayMaxBuyOrder),
			Err:       errors.New("buy order too long"),
		}
	}

	body := webpayCreateBody{
		BuyOrder:  req.BuyerRef,
		SessionID: req.SessionRef,
		Amount:    req.Amount,
		ReturnURL: req.ReturnURL,
	}

	var out webpayCreateResponse
	if err := doJSON(ctx, c.http, WebpayName, OperationCreate, http.MethodPost, c.baseURL+webpayTransactionsPath, c.headers(), body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" || out.URL == "" {
		return nil, &Error{Gateway: WebpayName, Operation: OperationCreate, Detail: out, Err: errors.New("response without token or url")}
	}

	return &Redirect{
		RedirectURL: out.URL + "?token_ws=" + url.QueryEscape(out.Token),
		Token:       out.Token,
	}, nil
}

func (c *WebpayClient) ConfirmPayment(ctx context.Context, token string) (*Settlement, error) {
	endpoint := c.baseURL + webpayTransactionsPath + "/" + url.PathEscape(token)

	var out webpayCommitResponse
	if err := doJSON(ctx, c.http, WebpayName, OperationConfirm, http.MethodPut, endpoint, c.headers(), nil, &out); err != nil {
		return nil, err
	}

	status := webpayStatus(out.Status, out.ResponseCode)
	settlement := &Settlement{
		Amount:     out.Amount,
		Status:     status,
		RawStatus:  out.Status,
		SessionRef: out.SessionID,
	}
	if status == models.PurchaseStatusApproved {
		settlement.TransactionID = out.AuthorizationCode
	}
	return settlement, nil
}

func (c *WebpayClient) headers() map[string]string {
	return map[string]string{
		"Tbk-Api-Key-Id":     c.commerceCode,
		"Tbk-Api-Key-Secret": c.apiKey,
	}
}

func webpayStatus(status string, responseCode int) models.PurchaseStatus {
	switch strings.ToUpper(status) {
	case "AUTHORIZED", "CAPTURED":
		if responseCode == 0 {
			return models.PurchaseStatusApproved
		}
		return models.PurchaseStatusRejected
	case "FAILED":
		return models.PurchaseStatusRejected
	case "INITIALIZED":
		return models.PurchaseStatusPending
	case "REVERSED", "NULLIFIED", "PARTIALLY_NULLIFIED":
		return models.PurchaseStatusFailed
	default:
		return models.PurchaseStatus(strings.ToLower(status))
	}
}
