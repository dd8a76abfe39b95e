package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"paygate_backend/internal/logger"
	"paygate_backend/internal/models"
)

// FileLedger keeps the whole ledger in one JSON document on local disk.
//
// Appends hold mu for the full load-modify-persist sequence, whichever customer
// they touch, because every customer shares the document. The document is
// replaced by writing a temp file in the same directory and renaming it over the
// target, so List never takes the lock and never sees a half-written file.
type FileLedger struct {
	path string
	now  Clock
	mu   sync.Mutex

	// beforeRename runs after the temp file is fully written and synced.
	// Returning an error aborts the persist as if the process died there.
	beforeRename func(tmpPath string) error
}

type FileOption func(*FileLedger)

// WithClock overrides the timestamp source.
func WithClock(c Clock) FileOption {
	return func(l *FileLedger) {
		l.now = c
	}
}

// NewFileLedger prepares a ledger at path. The document itself is created lazily
// on the first append; only the parent directory is created here.
func NewFileLedger(path string, opts ...FileOption) (*FileLedger, error) {
	if path == "" {
		return nil, errors.New("ledger: file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create ledger directory: %v", ErrIO, err)
	}

	l := &FileLedger{
		path: path,
		now:  systemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the location of the ledger document.
func (l *FileLedger) Path() string {
	return l.path
}

func (l *FileLedger) Append(ctx context.Context, customerID string, in models.PurchaseInput) (models.PurchaseRecord, error) {
	start := time.Now()

	record, err := buildRecord(customerID, in, l.now)
	if err != nil {
		return models.PurchaseRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		logger.LedgerLog("append", customerID, time.Since(start), err)
		return models.PurchaseRecord{}, err
	}

	if existing, ok := findTransaction(doc[customerID], record); ok {
		return existing, ErrDuplicateTransaction
	}

	// The loaded document is private to this call, so mutating it is safe
	// until persist succeeds; on failure it is simply dropped.
	doc[customerID] = append(doc[customerID], record)

	if err := l.persist(doc); err != nil {
		logger.LedgerLog("append", customerID, time.Since(start), err)
		return models.PurchaseRecord{}, err
	}

	logger.LedgerLog("append", customerID, time.Since(start), nil)
	return record, nil
}

func (l *FileLedger) List(ctx context.Context, customerID string) ([]models.PurchaseRecord, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	records := doc[customerID]
	if records == nil {
		return []models.PurchaseRecord{}, nil
	}
	return records, nil
}

func (l *FileLedger) Export(ctx context.Context) (Document, error) {
	return l.load()
}

// load reads the current document. A missing file is an empty ledger; a file
// that exists but is not a JSON object is ErrCorrupt.
func (l *FileLedger) load() (Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, l.path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %s does not contain a JSON object", ErrCorrupt, l.path)
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, l.path, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// persist replaces the document atomically: temp file, fsync, rename, then a
// best-effort fsync of the directory so the rename itself is durable.
func (l *FileLedger) persist(doc Document) (err error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode ledger: %v", ErrIO, err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrIO, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrIO, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp file: %v", ErrIO, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrIO, err)
	}

	if l.beforeRename != nil {
		if err = l.beforeRename(tmpPath); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	if err = os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("%w: rename into place: %v", ErrIO, err)
	}

	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
