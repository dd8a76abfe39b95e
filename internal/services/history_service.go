package services

import (
	"context"

	"paygate_backend/internal/ledger"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/models"
)

type HistoryService interface {
	GetHistory(ctx context.Context, customerID string) ([]models.PurchaseRecord, error)
}

type HistoryServiceImpl struct {
	ledger ledger.Ledger
}

func NewHistoryService(l ledger.Ledger) HistoryService {
	return &HistoryServiceImpl{ledger: l}
}

// GetHistory returns the customer's purchases in the order they were made.
// The customer id is used verbatim; unknown customers get an empty list.
func (s *HistoryServiceImpl) GetHistory(ctx context.Context, customerID string) ([]models.PurchaseRecord, error) {
	records, err := s.ledger.List(ctx, customerID)
	if err != nil {
		logger.CtxWithError(logger.WithCustomerID(ctx, customerID), "Failed to read purchase history", err)
		return nil, ledgerError(err)
	}
	return records, nil
}
