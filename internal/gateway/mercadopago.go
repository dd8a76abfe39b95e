package gateway

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paygate_backend/internal/models"
)

const (
	MercadoPagoName    = "mercadopago"
	MercadoPagoBaseURL = "https://api.mercadopago.com"
)

type MercadoPagoConfig struct {
	BaseURL     string
	AccessToken string
	Currency    string
	// Sandbox redirects buyers to sandbox_init_point instead of init_point.
	Sandbox    bool
	Timeout    time.Duration
	HTTPClient *http.Client
}

// MercadoPagoClient uses Checkout Pro: a preference is created up front and the
// buyer is sent to its init point. Mercado Pago redirects back with a payment_id,
// which is the token ConfirmPayment expects.
type MercadoPagoClient struct {
	baseURL     string
	accessToken string
	currency    string
	sandbox     bool
	http        *http.Client
}

func NewMercadoPagoClient(cfg MercadoPagoConfig) *MercadoPagoClient {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = MercadoPagoBaseURL
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "CLP"
	}
	return &MercadoPagoClient{
		baseURL:     base,
		accessToken: cfg.AccessToken,
		currency:    currency,
		sandbox:     cfg.Sandbox,
		http:        hc,
	}
}

func (c *MercadoPagoClient) Name() string        { return MercadoPagoName }
func (c *MercadoPagoClient) DisplayName() string { return "Mercado Pago" }

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mpPreferenceBody struct {
	Items             []mpItem          `json:"items"`
	Payer             map[string]string `json:"payer,omitempty"`
	ExternalReference string            `json:"external_reference"`
	BackURLs          mpBackURLs        `json:"back_urls"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type mpPreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type mpPaymentResponse struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	TransactionAmount float64 `json:"transaction_amount"`
	ExternalReference string  `json:"external_reference"`
}

func (c *MercadoPagoClient) CreatePayment(ctx context.Context, req CreateRequest) (*Redirect, error) {
	body := mpPreferenceBody{
		Items:             c.preferenceItems(req.Items, req.Amount),
		ExternalReference: req.SessionRef,
		BackURLs: mpBackURLs{
			Success: req.ReturnURL,
			Failure: req.ReturnURL,
			Pending: req.ReturnURL,
		},
		Metadata: map[string]string{"buyer_ref": req.BuyerRef},
	}
	if req.Email != "" {
		body.Payer = map[string]string{"email": req.Email}
	}
	// Mercado Pago refuses auto_return without a success URL.
	if req.ReturnURL != "" {
		body.AutoReturn = "approved"
	}

	headers := c.headers()
	headers["X-Idempotency-Key"] = req.BuyerRef

	var out mpPreferenceResponse
	if err := doJSON(ctx, c.http, MercadoPagoName, OperationCreate, http.MethodPost, c.baseURL+"/checkout/preferences", headers, body, &out); err != nil {
		return nil, err
	}

	redirect := out.InitPoint
	if c.sandbox && out.SandboxInitPoint != "" {
		redirect = out.SandboxInitPoint
	}
	if out.ID == "" || redirect == "" {
		return nil, &Error{Gateway: MercadoPagoName, Operation: OperationCreate, Detail: out, Err: errors.New("response without preference id or init point")}
	}

	return &Redirect{RedirectURL: redirect, Token: out.ID}, nil
}

func (c *MercadoPagoClient) ConfirmPayment(ctx context.Context, token string) (*Settlement, error) {
	if _, err := strconv.ParseInt(token, 10, 64); err != nil {
		return nil, &Error{Gateway: MercadoPagoName, Operation: OperationConfirm, Detail: "payment id must be numeric", Err: err}
	}

	var out mpPaymentResponse
	endpoint := c.baseURL + "/v1/payments/" + url.PathEscape(token)
	if err := doJSON(ctx, c.http, MercadoPagoName, OperationConfirm, http.MethodGet, endpoint, c.headers(), nil, &out); err != nil {
		return nil, err
	}

	settlement := &Settlement{
		Amount:     out.TransactionAmount,
		Status:     mercadoPagoStatus(out.Status),
		RawStatus:  out.Status,
		SessionRef: out.ExternalReference,
	}
	if out.ID != 0 {
		settlement.TransactionID = strconv.FormatInt(out.ID, 10)
	}
	return settlement, nil
}

// preferenceItems sends the line items as-is when every item is priced and they
// add up to amount; otherwise one summary line carries the whole amount.
func (c *MercadoPagoClient) preferenceItems(items []models.PurchaseItem, amount float64) []mpItem {
	var sum float64
	priced := len(items) > 0
	for _, it := range items {
		if it.Price == nil || *it.Price <= 0 {
			priced = false
			break
		}
		sum += *it.Price
	}

	if priced && math.Abs(sum-amount) < 0.005 {
		out := make([]mpItem, 0, len(items))
		for _, it := range items {
			out = append(out, mpItem{Title: it.Name, Quantity: 1, UnitPrice: *it.Price, CurrencyID: c.currency})
		}
		return out
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	title := strings.Join(names, ", ")
	if title == "" {
		title = "Purchase"
	}
	return []mpItem{{Title: title, Quantity: 1, UnitPrice: amount, CurrencyID: c.currency}}
}

func (c *MercadoPagoClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.accessToken,
	}
}

func mercadoPagoStatus(status string) models.PurchaseStatus {
	switch status {
	case "approved":
		return models.PurchaseStatusApproved
	case "rejected":
		return models.PurchaseStatusRejected
	case "pending", "in_process", "authorized":
		return models.PurchaseStatusPending
	case "cancelled", "refunded", "charged_back":
		return models.PurchaseStatusFailed
	default:
		return models.PurchaseStatus(status)
	}
}
