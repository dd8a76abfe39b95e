package dto

import "paygate_backend/internal/models"

type CreatePaymentRequest struct {
	CustomerID string                `json:"customerId" validate:"required,email"`
	Items      []models.PurchaseItem `json:"items" validate:"required,min=1,dive"`
	Amount     float64               `json:"amount" validate:"gt=0,finite"`
	Gateway    string                `json:"gateway,omitempty" validate:"omitempty,is-gateway"`
}

type CreatePaymentResponse struct {
	RedirectURL string `json:"redirectUrl"`
	Token       string `json:"token"`
	Gateway     string `json:"gateway"`
}

type CommitPaymentRequest struct {
	Token      string                `json:"token" validate:"required,not-blank"`
	CustomerID string                `json:"customerId" validate:"required,email"`
	Items      []models.PurchaseItem `json:"items" validate:"required,min=1,dive"`
	Gateway    string                `json:"gateway,omitempty" validate:"omitempty,is-gateway"`
}

// SettlementDetails is attached to a storage error raised after the gateway
// already settled the payment, so callers can tell the two failures apart.
type SettlementDetails struct {
	Settled       bool                  `json:"settled"`
	Gateway       string                `json:"gateway"`
	TransactionID string                `json:"transactionId,omitempty"`
	Status        models.PurchaseStatus `json:"status"`
	Amount        float64               `json:"amount"`
}

// ReturnPage feeds the HTML view rendered on the gateway return redirect.
type ReturnPage struct {
	Token   string
	Gateway string
}
