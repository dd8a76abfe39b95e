package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paygate_backend/internal/logger"
	"paygate_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// purchaseRow is one ledger entry in the purchase_records table.
// Insertion order is ID order. A transaction id is unique per customer and
// method.
type purchaseRow struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	CustomerID    string         `gorm:"size:320;not null;index;uniqueIndex:idx_purchase_records_tx,where:transaction_id <> ''"`
	TransactionID string         `gorm:"size:128;uniqueIndex:idx_purchase_records_tx,where:transaction_id <> ''"`
	RecordedAt    time.Time      `gorm:"not null"`
	Items         datatypes.JSON `gorm:"type:jsonb;not null"`
	Amount        float64        `gorm:"not null"`
	Status        string         `gorm:"size:64;not null"`
	Method        string         `gorm:"size:128;uniqueIndex:idx_purchase_records_tx,where:transaction_id <> ''"`
}

func (purchaseRow) TableName() string {
	return "purchase_records"
}

// PostgresLedger stores the ledger as rows instead of one document. The database
// serializes concurrent inserts, so no process-level lock is needed.
type PostgresLedger struct {
	db  *gorm.DB
	now Clock
}

// OpenPostgresLedger connects to dsn and migrates the purchase_records table.
func OpenPostgresLedger(dsn string) (*PostgresLedger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrIO, err)
	}
	return NewPostgresLedger(db)
}

func NewPostgresLedger(db *gorm.DB) (*PostgresLedger, error) {
	if err := db.AutoMigrate(&purchaseRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate purchase_records: %v", ErrIO, err)
	}
	return &PostgresLedger{db: db, now: systemClock}, nil
}

func (l *PostgresLedger) Append(ctx context.Context, customerID string, in models.PurchaseInput) (models.PurchaseRecord, error) {
	start := time.Now()

	record, err := buildRecord(customerID, in, l.now)
	if err != nil {
		return models.PurchaseRecord{}, err
	}

	items, err := json.Marshal(record.Items)
	if err != nil {
		return models.PurchaseRecord{}, fmt.Errorf("%w: encode items: %v", ErrInvalidRecord, err)
	}

	if existing, ok, err := l.findTransaction(ctx, customerID, record); err != nil || ok {
		return existing, err
	}

	row := purchaseRow{
		CustomerID:    customerID,
		TransactionID: record.TransactionID,
		RecordedAt:    record.Timestamp,
		Items:         datatypes.JSON(items),
		Amount:        record.Amount,
		Status:        string(record.Status),
		Method:        record.Method,
	}

	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		// A concurrent commit of the same payment loses on the unique index.
		if existing, ok, _ := l.findTransaction(ctx, customerID, record); ok {
			return existing, ErrDuplicateTransaction
		}
		err = fmt.Errorf("%w: insert purchase: %v", ErrIO, err)
		logger.LedgerLog("append", customerID, time.Since(start), err)
		return models.PurchaseRecord{}, err
	}

	logger.LedgerLog("append", customerID, time.Since(start), nil)
	return record, nil
}

func (l *PostgresLedger) List(ctx context.Context, customerID string) ([]models.PurchaseRecord, error) {
	var rows []purchaseRow
	err := l.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query purchases: %v", ErrIO, err)
	}

	records := make([]models.PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (l *PostgresLedger) Export(ctx context.Context) (Document, error) {
	var rows []purchaseRow
	if err := l.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: query purchases: %v", ErrIO, err)
	}

	doc := Document{}
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		doc[row.CustomerID] = append(doc[row.CustomerID], rec)
	}
	return doc, nil
}

// findTransaction returns the stored record for the same payment, if any,
// with ErrDuplicateTransaction.
func (l *PostgresLedger) findTransaction(ctx context.Context, customerID string, rec models.PurchaseRecord) (models.PurchaseRecord, bool, error) {
	if rec.TransactionID == "" {
		return models.PurchaseRecord{}, false, nil
	}

	var rows []purchaseRow
	err := l.db.WithContext(ctx).
		Where("customer_id = ? AND transaction_id = ? AND method = ?", customerID, rec.TransactionID, rec.Method).
		Order("id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return models.PurchaseRecord{}, false, fmt.Errorf("%w: query purchases: %v", ErrIO, err)
	}
	if len(rows) == 0 {
		return models.PurchaseRecord{}, false, nil
	}

	existing, err := rows[0].toRecord()
	if err != nil {
		return models.PurchaseRecord{}, false, err
	}
	return existing, true, ErrDuplicateTransaction
}

// Close releases the underlying connection pool.
func (l *PostgresLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r purchaseRow) toRecord() (models.PurchaseRecord, error) {
	var items []models.PurchaseItem
	if err := json.Unmarshal(r.Items, &items); err != nil {
		return models.PurchaseRecord{}, fmt.Errorf("%w: row %d items: %v", ErrCorrupt, r.ID, err)
	}
	if items == nil {
		return models.PurchaseRecord{}, fmt.Errorf("%w: row %d has no items", ErrCorrupt, r.ID)
	}

	return models.PurchaseRecord{
		TransactionID: r.TransactionID,
		Timestamp:     r.RecordedAt.UTC(),
		Items:         items,
		Amount:        r.Amount,
		Status:        models.PurchaseStatus(r.Status),
		Method:        r.Method,
	}, nil
}
