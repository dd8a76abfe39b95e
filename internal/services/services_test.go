package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"paygate_backend/internal/auth"
	"paygate_backend/internal/gateway"
	"paygate_backend/internal/ledger"
	"paygate_backend/internal/models"
	"paygate_backend/internal/services/dto"
	"paygate_backend/internal/storage"
	"paygate_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records calls and returns canned results.
type fakeGateway struct {
	mu         sync.Mutex
	created    []gateway.CreateRequest
	confirmed  []string
	settlement *gateway.Settlement
	err        error
}

func (f *fakeGateway) Name() string        { return "fake" }
func (f *fakeGateway) DisplayName() string { return "Fake Pay" }

func (f *fakeGateway) CreatePayment(ctx context.Context, req gateway.CreateRequest) (*gateway.Redirect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Redirect{RedirectURL: "https://pay.test/start?token=tok-1", Token: "tok-1"}, nil
}

func (f *fakeGateway) ConfirmPayment(ctx context.Context, token string) (*gateway.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.settlement, nil
}

type recordingMailer struct {
	sent []models.PurchaseRecord
	err  error
}

func (m *recordingMailer) SendReceipt(ctx context.Context, to string, record models.PurchaseRecord) error {
	m.sent = append(m.sent, record)
	return m.err
}

type fixture struct {
	svc     PaymentService
	gw      *fakeGateway
	ledger  *ledger.FileLedger
	mailer  *recordingMailer
	history HistoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l, err := ledger.NewFileLedger(filepath.Join(t.TempDir(), "historial.json"))
	require.NoError(t, err)

	gw := &fakeGateway{settlement: &gateway.Settlement{
		TransactionID: "1213",
		Amount:        10,
		Status:        models.PurchaseStatusApproved,
		RawStatus:     "AUTHORIZED",
	}}
	reg := gateway.NewRegistry("fake", time.Second)
	reg.Register(gw)

	mailer := &recordingMailer{}
	return &fixture{
		svc:     NewPaymentService(reg, l, mailer, "http://localhost:10000/payment/return"),
		gw:      gw,
		ledger:  l,
		mailer:  mailer,
		history: NewHistoryService(l),
	}
}

func appErr(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	var e *apperrors.AppError
	require.True(t, errors.As(err, &e), "expected *AppError, got %T: %v", err, err)
	return e
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreatePayment(context.Background(), &dto.CreatePaymentRequest{
		CustomerID: "a@x.com",
		Items:      models.ItemsFromStrings("Widget ($10)"),
		Amount:     10,
	})
	require.NoError(t, err)

	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "fake", res.Gateway)
	assert.Equal(t, "https://pay.test/start?token=tok-1", res.RedirectURL)

	require.Len(t, f.gw.created, 1)
	req := f.gw.created[0]
	assert.Equal(t, "a@x.com", req.SessionRef)
	assert.Len(t, req.BuyerRef, gateway.WebpayMaxBuyOrder)
	assert.Equal(t, "http://localhost:10000/payment/return?gateway=fake", req.ReturnURL)
	assert.Equal(t, 10.0, req.Amount)
}

func TestCreatePayment_Errors(t *testing.T) {
	t.Run("unknown gateway", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreatePayment(context.Background(), &dto.CreatePaymentRequest{
			CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"), Amount: 10, Gateway: "paypal",
		})
		e := appErr(t, err)
		assert.Equal(t, apperrors.CodeValidationFailed, e.Code)
		assert.Equal(t, http.StatusBadRequest, e.HTTPCode)
		assert.Empty(t, f.gw.created)
	})

	t.Run("gateway failure passes detail through", func(t *testing.T) {
		f := newFixture(t)
		f.gw.err = &gateway.Error{Gateway: "fake", Operation: gateway.OperationCreate, StatusCode: 401, Detail: map[string]interface{}{"error_message": "Not Authorized"}, Err: errors.New("unexpected status")}

		_, err := f.svc.CreatePayment(context.Background(), &dto.CreatePaymentRequest{
			CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"), Amount: 10,
		})
		e := appErr(t, err)
		assert.Equal(t, apperrors.CodeGatewayError, e.Code)
		assert.Equal(t, http.StatusInternalServerError, e.HTTPCode)
		assert.Equal(t, map[string]interface{}{"error_message": "Not Authorized"}, e.Details)
	})
}

func TestCommitPayment_AppendsRecordAndSendsReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.CommitPayment(ctx, &dto.CommitPaymentRequest{
		Token:      "tok-1",
		CustomerID: "a@x.com",
		Items:      models.ItemsFromStrings("Widget ($10)"),
	})
	require.NoError(t, err)

	assert.Equal(t, "1213", rec.TransactionID)
	assert.Equal(t, 10.0, rec.Amount)
	assert.Equal(t, models.PurchaseStatusApproved, rec.Status)
	assert.Equal(t, "Fake Pay", rec.Method)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, []string{"tok-1"}, f.gw.confirmed)

	history, err := f.history.GetHistory(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, *rec, history[0])

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "1213", f.mailer.sent[0].TransactionID)
}

func TestCommitPayment_ReplayedCommitRecordsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.settlement.SessionRef = "a@x.com"

	req := &dto.CommitPaymentRequest{Token: "tok-1", CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget ($10)")}
	first, err := f.svc.CommitPayment(ctx, req)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		again, err := f.svc.CommitPayment(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, *first, *again)
	}

	history, err := f.history.GetHistory(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, f.mailer.sent, 1)
	assert.Len(t, f.gw.confirmed, 3)
}

func TestCommitPayment_RejectsSettlementOfAnotherCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.settlement.SessionRef = "a@x.com"

	_, err := f.svc.CommitPayment(ctx, &dto.CommitPaymentRequest{
		Token: "tok-1", CustomerID: "mallory@x.com", Items: models.ItemsFromStrings("Widget"),
	})
	e := appErr(t, err)
	assert.Equal(t, apperrors.CodeCustomerMismatch, e.Code)
	assert.Equal(t, http.StatusConflict, e.HTTPCode)

	_, statErr := os.Stat(f.ledger.Path())
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, f.mailer.sent)
}

func TestCommitPayment_RecordsRejectedSettlement(t *testing.T) {
	f := newFixture(t)
	f.gw.settlement = &gateway.Settlement{Amount: 10, Status: models.PurchaseStatusRejected, RawStatus: "FAILED"}

	rec, err := f.svc.CommitPayment(context.Background(), &dto.CommitPaymentRequest{
		Token: "tok-1", CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusRejected, rec.Status)
	assert.Empty(t, rec.TransactionID)
}

func TestCommitPayment_GatewayFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	f.gw.err = errors.New("connection refused")

	_, err := f.svc.CommitPayment(context.Background(), &dto.CommitPaymentRequest{
		Token: "tok-1", CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"),
	})
	e := appErr(t, err)
	assert.Equal(t, apperrors.CodeGatewayError, e.Code)
	assert.Equal(t, "connection refused", e.Details)

	_, statErr := os.Stat(f.ledger.Path())
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, f.mailer.sent)
}

func TestCommitPayment_UnusableSettlement(t *testing.T) {
	f := newFixture(t)
	f.gw.settlement = &gateway.Settlement{Status: models.PurchaseStatusRejected, RawStatus: "unknown_token"}

	_, err := f.svc.CommitPayment(context.Background(), &dto.CommitPaymentRequest{
		Token: "tok-1", CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"),
	})
	assert.Equal(t, apperrors.CodeGatewayError, appErr(t, err).Code)

	_, statErr := os.Stat(f.ledger.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommitPayment_LedgerFailureAfterSettlement(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.ledger.Path(), []byte("{not json"), 0o644))

	_, err := f.svc.CommitPayment(context.Background(), &dto.CommitPaymentRequest{
		Token: "tok-1", CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"),
	})
	e := appErr(t, err)
	assert.Equal(t, apperrors.CodeStorageCorrupted, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPCode)
	assert.Equal(t, dto.SettlementDetails{
		Settled:       true,
		Gateway:       "fake",
		TransactionID: "1213",
		Status:        models.PurchaseStatusApproved,
		Amount:        10,
	}, e.Details)
	assert.Empty(t, f.mailer.sent)
}

func TestCommitPayment_ReceiptFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	rec, err := f.svc.CommitPayment(context.Background(), &dto.CommitPaymentRequest{
		Token: "tok-1", CustomerID: "a@x.com", Items: models.ItemsFromStrings("Widget"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1213", rec.TransactionID)
}

func TestGetHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records, err := f.history.GetHistory(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	require.NoError(t, os.WriteFile(f.ledger.Path(), []byte("[]"), 0o644))
	_, err = f.history.GetHistory(ctx, "nobody@x.com")
	assert.Equal(t, apperrors.CodeStorageCorrupted, appErr(t, err).Code)
}

func TestSnapshotService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.Append(ctx, "a@x.com", models.PurchaseInput{Items: models.ItemsFromStrings("Widget"), Amount: 10, Status: models.PurchaseStatusApproved})
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, "b@x.com", models.PurchaseInput{Items: models.ItemsFromStrings("Gadget"), Amount: 5, Status: models.PurchaseStatusApproved})
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, "a@x.com", models.PurchaseInput{Items: models.ItemsFromStrings("Gizmo"), Amount: 7, Status: models.PurchaseStatusPending})
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir(), BaseURL: "/files"})
	require.NoError(t, err)

	svc := NewSnapshotService(f.ledger, store).(*SnapshotServiceImpl)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 13, 4, 5, 0, time.FixedZone("x", 3600)) }

	res, err := svc.CreateSnapshot(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^ledger/snapshots/20240501T120405Z-[0-9a-f]{8}\.json$`, res.Path)
	assert.Equal(t, "/files/"+res.Path, res.URL)
	assert.Equal(t, 2, res.Customers)
	assert.Equal(t, 3, res.Records)

	list, err := svc.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, res.Path, list.Snapshots[0].Key)

	rc, err := svc.OpenSnapshot(ctx, path.Base(res.Path))
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Contains(t, string(body), `"Gizmo"`)

	_, err = svc.OpenSnapshot(ctx, "missing.json")
	assert.Equal(t, apperrors.CodeNotFound, appErr(t, err).Code)

	_, err = svc.OpenSnapshot(ctx, "../historial.json")
	assert.Equal(t, http.StatusBadRequest, appErr(t, err).HTTPCode)
}

func TestSnapshotService_SameSecondKeepsBothSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	store, err := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir(), BaseURL: "/files"})
	require.NoError(t, err)

	svc := NewSnapshotService(f.ledger, store).(*SnapshotServiceImpl)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 4, 5, 0, time.UTC) }

	_, err = f.ledger.Append(ctx, "a@x.com", models.PurchaseInput{Items: models.ItemsFromStrings("Widget"), Amount: 10, Status: models.PurchaseStatusApproved})
	require.NoError(t, err)
	first, err := svc.CreateSnapshot(ctx)
	require.NoError(t, err)

	_, err = f.ledger.Append(ctx, "a@x.com", models.PurchaseInput{Items: models.ItemsFromStrings("Gadget"), Amount: 5, Status: models.PurchaseStatusApproved})
	require.NoError(t, err)
	second, err := svc.CreateSnapshot(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, 1, first.Records)
	assert.Equal(t, 2, second.Records)

	list, err := svc.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Snapshots, 2)

	rc, err := svc.OpenSnapshot(ctx, path.Base(first.Path))
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"Gadget"`)
}

func TestAdminService_Login(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)

	tokens := auth.NewTokenManager("s3cret", time.Hour)
	svc := NewAdminService("admin", hash, tokens)

	res, err := svc.Login(context.Background(), &dto.AdminLoginRequest{Username: "admin", Password: "hunter22"})
	require.NoError(t, err)
	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	for _, req := range []dto.AdminLoginRequest{
		{Username: "admin", Password: "wrong"},
		{Username: "root", Password: "hunter22"},
	} {
		_, err := svc.Login(context.Background(), &req)
		assert.Equal(t, apperrors.CodeUnauthorized, appErr(t, err).Code)
	}
}
