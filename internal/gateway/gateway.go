// Package gateway talks to the payment providers. Every provider exposes the same
// two calls: create a payment and get a redirect, then confirm it once the buyer
// comes back. Calls are never retried.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"paygate_backend/internal/logger"
	"paygate_backend/internal/metrics"
	"paygate_backend/internal/models"
)

const (
	OperationCreate  = "create"
	OperationConfirm = "confirm"
)

// CreateRequest holds the normalized payment parameters.
type CreateRequest struct {
	BuyerRef   string // merchant order reference, unique per attempt
	SessionRef string // buyer session; the customer email in this service
	Amount     float64
	ReturnURL  string
	Items      []models.PurchaseItem
	Email      string
}

type Redirect struct {
	RedirectURL string `json:"redirectUrl"`
	Token       string `json:"token"`
}

// Settlement is the gateway's verdict on a payment.
type Settlement struct {
	TransactionID string                `json:"transactionId,omitempty"`
	Amount        float64               `json:"amount"`
	Status        models.PurchaseStatus `json:"status"`
	RawStatus     string                `json:"rawStatus"`
	// SessionRef echoes CreateRequest.SessionRef when the gateway reports it.
	SessionRef    string                `json:"sessionRef,omitempty"`
}

type Client interface {
	// Name is the registry key, e.g. "webpay".
	Name() string
	// DisplayName is stored as the purchase method, e.g. "Webpay Plus".
	DisplayName() string
	CreatePayment(ctx context.Context, req CreateRequest) (*Redirect, error)
	ConfirmPayment(ctx context.Context, token string) (*Settlement, error)
}

// Error is an opaque remote failure. Detail holds whatever the gateway sent back
// (decoded JSON when possible) or the transport error text.
type Error struct {
	Gateway    string
	Operation  string
	StatusCode int
	Detail     interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s %s: http %d: %v", e.Gateway, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s %s: %v", e.Gateway, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry holds the configured gateways. Clients added through Register are
// wrapped so that every call is time-bounded, logged and counted.
type Registry struct {
	clients     map[string]Client
	defaultName string
	timeout     time.Duration
}

func NewRegistry(defaultName string, timeout time.Duration) *Registry {
	return &Registry{
		clients:     make(map[string]Client),
		defaultName: defaultName,
		timeout:     timeout,
	}
}

func (r *Registry) Register(c Client) {
	r.clients[c.Name()] = &instrumented{Client: c, timeout: r.timeout}
	logger.Debug("Payment gateway registered", "gateway", c.Name(), "timeout", r.timeout)
}

// Get resolves name, falling back to the default gateway when name is empty.
func (r *Registry) Get(name string) (Client, bool) {
	if name == "" {
		name = r.defaultName
	}
	c, ok := r.clients[name]
	return c, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.clients[name]
	return ok
}

func (r *Registry) Default() string {
	return r.defaultName
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type instrumented struct {
	Client
	timeout time.Duration
}

func (c *instrumented) CreatePayment(ctx context.Context, req CreateRequest) (*Redirect, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	start := time.Now()
	res, err := c.Client.CreatePayment(ctx, req)
	err = c.normalize(OperationCreate, err)
	c.observe(OperationCreate, time.Since(start), err)
	return res, err
}

func (c *instrumented) ConfirmPayment(ctx context.Context, token string) (*Settlement, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	start := time.Now()
	res, err := c.Client.ConfirmPayment(ctx, token)
	err = c.normalize(OperationConfirm, err)
	c.observe(OperationConfirm, time.Since(start), err)
	return res, err
}

func (c *instrumented) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// normalize guarantees callers only ever see *Error from a gateway.
func (c *instrumented) normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	detail := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "gateway did not answer in time"
	}
	return &Error{Gateway: c.Name(), Operation: op, Detail: detail, Err: err}
}

func (c *instrumented) observe(op string, d time.Duration, err error) {
	logger.GatewayLog(c.Name(), op, d, err)
	metrics.ObserveGateway(c.Name(), op, d, err)
}
