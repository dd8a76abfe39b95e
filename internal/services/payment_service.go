package services

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"

	"paygate_backend/internal/email"
	"paygate_backend/internal/gateway"
	"paygate_backend/internal/ledger"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/metrics"
	"paygate_backend/internal/models"
	"paygate_backend/internal/services/dto"
	"paygate_backend/pkg/apperrors"

	"github.com/google/uuid"
)

type PaymentService interface {
	CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error)
	CommitPayment(ctx context.Context, req *dto.CommitPaymentRequest) (*models.PurchaseRecord, error)
	// DefaultGateway names the gateway used when a request does not pick one.
	DefaultGateway() string
}

type PaymentServiceImpl struct {
	gateways  *gateway.Registry
	ledger    ledger.Ledger
	mailer    email.Mailer
	returnURL string
}

func NewPaymentService(gateways *gateway.Registry, l ledger.Ledger, mailer email.Mailer, returnURL string) PaymentService {
	if mailer == nil {
		mailer = email.NoopMailer{}
	}
	return &PaymentServiceImpl{
		gateways:  gateways,
		ledger:    l,
		mailer:    mailer,
		returnURL: returnURL,
	}
}

func (s *PaymentServiceImpl) DefaultGateway() string {
	return s.gateways.Default()
}

// CreatePayment starts a payment and returns where to send the buyer.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	client, err := s.client(req.Gateway)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithCustomerID(ctx, req.CustomerID)

	redirect, err := client.CreatePayment(ctx, gateway.CreateRequest{
		BuyerRef:   newBuyOrder(),
		SessionRef: req.CustomerID,
		Amount:     req.Amount,
		ReturnURL:  s.returnURLFor(client.Name()),
		Items:      req.Items,
		Email:      req.CustomerID,
	})
	if err != nil {
		logger.CtxWithError(ctx, "Payment creation failed", err, "gateway", client.Name())
		return nil, gatewayError(client.Name(), err)
	}

	logger.CtxInfo(ctx, "Payment created", "gateway", client.Name(), "amount", req.Amount)
	return &dto.CreatePaymentResponse{
		RedirectURL: redirect.RedirectURL,
		Token:       redirect.Token,
		Gateway:     client.Name(),
	}, nil
}

// CommitPayment confirms the payment with the gateway and records the outcome.
// Gateway failures leave the ledger untouched; a ledger failure after the gateway
// settled is reported with the settlement attached.
func (s *PaymentServiceImpl) CommitPayment(ctx context.Context, req *dto.CommitPaymentRequest) (*models.PurchaseRecord, error) {
	client, err := s.client(req.Gateway)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithCustomerID(ctx, req.CustomerID)

	settlement, err := client.ConfirmPayment(ctx, req.Token)
	if err != nil {
		logger.CtxWithError(ctx, "Payment confirmation failed", err, "gateway", client.Name())
		return nil, gatewayError(client.Name(), err)
	}
	if err := checkSettlement(settlement); err != nil {
		logger.CtxWarn(ctx, "Gateway returned an unusable settlement", "gateway", client.Name(), "raw_status", settlement.RawStatus)
		return nil, apperrors.GatewayError(err, client.Name(), settlement)
	}
	metrics.ObserveSettlement(client.Name(), string(settlement.Status))

	if settlement.SessionRef != "" && settlement.SessionRef != req.CustomerID {
		logger.CtxWarn(ctx, "Settlement belongs to another customer",
			"gateway", client.Name(),
			"transaction_id", settlement.TransactionID,
		)
		return nil, apperrors.ErrCustomerMismatch(client.Name())
	}

	record, err := s.ledger.Append(ctx, req.CustomerID, models.PurchaseInput{
		TransactionID: settlement.TransactionID,
		Items:         req.Items,
		Amount:        settlement.Amount,
		Status:        settlement.Status,
		Method:        client.DisplayName(),
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		metrics.ObserveLedgerAppend(nil)
		logger.CtxInfo(ctx, "Payment already recorded",
			"gateway", client.Name(),
			"transaction_id", record.TransactionID,
		)
		return &record, nil
	}
	metrics.ObserveLedgerAppend(err)
	if err != nil {
		logger.CtxWithError(ctx, "Settled payment could not be recorded", err,
			"gateway", client.Name(),
			"transaction_id", settlement.TransactionID,
			"status", string(settlement.Status),
		)
		return nil, ledgerError(err).WithDetails(dto.SettlementDetails{
			Settled:       true,
			Gateway:       client.Name(),
			TransactionID: settlement.TransactionID,
			Status:        settlement.Status,
			Amount:        settlement.Amount,
		})
	}

	if err := s.mailer.SendReceipt(ctx, req.CustomerID, record); err != nil {
		logger.CtxWithError(ctx, "Receipt email failed", err)
	}

	logger.CtxInfo(ctx, "Payment committed",
		"gateway", client.Name(),
		"transaction_id", record.TransactionID,
		"status", string(record.Status),
	)
	return &record, nil
}

func (s *PaymentServiceImpl) client(name string) (gateway.Client, error) {
	client, ok := s.gateways.Get(name)
	if !ok {
		if name == "" {
			name = s.gateways.Default()
		}
		return nil, apperrors.ErrUnknownGateway(name)
	}
	return client, nil
}

// returnURLFor tags the return URL with the gateway so the return page can
// commit against the right one.
func (s *PaymentServiceImpl) returnURLFor(name string) string {
	u, err := url.Parse(s.returnURL)
	if err != nil {
		return s.returnURL
	}
	q := u.Query()
	q.Set("gateway", name)
	u.RawQuery = q.Encode()
	return u.String()
}

func checkSettlement(st *gateway.Settlement) error {
	if st == nil {
		return errors.New("empty settlement")
	}
	if st.Status == "" {
		return errors.New("settlement without status")
	}
	if math.IsNaN(st.Amount) || math.IsInf(st.Amount, 0) || st.Amount <= 0 {
		return errors.New("settlement without a positive amount")
	}
	return nil
}

// newBuyOrder returns a unique order reference short enough for Webpay.
func newBuyOrder() string {
	ref := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ref[:gateway.WebpayMaxBuyOrder]
}
