// Package ledger stores the purchase history of every customer.
//
// A ledger maps a customer identity (the buyer's email, used verbatim) to the
// ordered list of their purchases. Appends are serialized across all customers;
// a reader never observes a partially written history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"paygate_backend/internal/models"
)

var (
	ErrEmptyCustomer = errors.New("ledger: customer id is required")
	ErrInvalidRecord = errors.New("ledger: invalid purchase record")

	// ErrCorrupt means the backing document exists but is not a valid ledger.
	ErrCorrupt = errors.New("ledger: document is corrupt")

	// ErrIO is a read or write failure of the backing store. Retrying is safe.
	ErrIO = errors.New("ledger: storage i/o failure")

	// ErrDuplicateTransaction is returned by Append together with the record
	// already stored for the same customer, transaction id and method.
	ErrDuplicateTransaction = errors.New("ledger: transaction already recorded")
)

// Document is the whole ledger: customer id -> purchases in insertion order.
type Document map[string][]models.PurchaseRecord

// Ledger is implemented by every storage driver.
type Ledger interface {
	// Append stores a new record at the tail of the customer's history. A
	// replayed transaction is not stored twice: the existing record comes back
	// with ErrDuplicateTransaction.
	Append(ctx context.Context, customerID string, in models.PurchaseInput) (models.PurchaseRecord, error)
	List(ctx context.Context, customerID string) ([]models.PurchaseRecord, error)
	Export(ctx context.Context) (Document, error)
}

// Clock returns the instant stamped on new records.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// buildRecord validates in and turns it into the record that will be stored.
func buildRecord(customerID string, in models.PurchaseInput, now Clock) (models.PurchaseRecord, error) {
	if strings.TrimSpace(customerID) == "" {
		return models.PurchaseRecord{}, ErrEmptyCustomer
	}
	if len(in.Items) == 0 {
		return models.PurchaseRecord{}, fmt.Errorf("%w: at least one item is required", ErrInvalidRecord)
	}
	for idx, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return models.PurchaseRecord{}, fmt.Errorf("%w: item %d is empty", ErrInvalidRecord, idx)
		}
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount <= 0 {
		return models.PurchaseRecord{}, fmt.Errorf("%w: amount must be a positive number", ErrInvalidRecord)
	}
	if in.Status == "" {
		return models.PurchaseRecord{}, fmt.Errorf("%w: status is required", ErrInvalidRecord)
	}

	ts := now()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}

	items := make([]models.PurchaseItem, len(in.Items))
	copy(items, in.Items)

	return models.PurchaseRecord{
		TransactionID: in.TransactionID,
		Timestamp:     ts,
		Items:         items,
		Amount:        in.Amount,
		Status:        in.Status,
		Method:        in.Method,
	}, nil
}

// findTransaction looks for a stored record that settles the same payment as
// rec. Records without a transaction id never match.
func findTransaction(records []models.PurchaseRecord, rec models.PurchaseRecord) (models.PurchaseRecord, bool) {
	if rec.TransactionID == "" {
		return models.PurchaseRecord{}, false
	}
	for _, r := range records {
		if r.TransactionID == rec.TransactionID && r.Method == rec.Method {
			return r, true
		}
	}
	return models.PurchaseRecord{}, false
}

var _ Ledger = (*FileLedger)(nil)
var _ Ledger = (*PostgresLedger)(nil)

// Open picks a driver by name.
func Open(driver, path, dsn string) (Ledger, error) {
	switch driver {
	case "", "file":
		return NewFileLedger(path)
	case "postgres":
		if dsn == "" {
			return nil, errors.New("ledger: postgres driver requires a dsn")
		}
		return OpenPostgresLedger(dsn)
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", driver)
	}
}
