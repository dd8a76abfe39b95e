package gateway

import (
	"context"
	"net/url"
	"sync"

	"paygate_backend/internal/models"

	"github.com/google/uuid"
)

const MockName = "mock"

// MockClient settles everything it created, in process. It exists for local
// development without gateway credentials. Like a real gateway it reports the
// same settlement every time a token is confirmed.
type MockClient struct {
	mu       sync.Mutex
	payments map[string]mockPayment
}

type mockPayment struct {
	amount     float64
	sessionRef string
}

func NewMockClient() *MockClient {
	return &MockClient{payments: make(map[string]mockPayment)}
}

func (c *MockClient) Name() string        { return MockName }
func (c *MockClient) DisplayName() string { return "Mock Gateway" }

func (c *MockClient) CreatePayment(ctx context.Context, req CreateRequest) (*Redirect, error) {
	token := uuid.NewString()

	c.mu.Lock()
	c.payments[token] = mockPayment{amount: req.Amount, sessionRef: req.SessionRef}
	c.mu.Unlock()

	redirect := req.ReturnURL
	if u, err := url.Parse(req.ReturnURL); err == nil {
		q := u.Query()
		q.Set("token", token)
		q.Set("gateway", MockName)
		u.RawQuery = q.Encode()
		redirect = u.String()
	}

	return &Redirect{RedirectURL: redirect, Token: token}, nil
}

func (c *MockClient) ConfirmPayment(ctx context.Context, token string) (*Settlement, error) {
	c.mu.Lock()
	p, ok := c.payments[token]
	c.mu.Unlock()

	if !ok {
		return &Settlement{Status: models.PurchaseStatusRejected, RawStatus: "unknown_token"}, nil
	}
	return &Settlement{
		TransactionID: "mock-" + token[:8],
		Amount:        p.amount,
		Status:        models.PurchaseStatusApproved,
		RawStatus:     "approved",
		SessionRef:    p.sessionRef,
	}, nil
}
