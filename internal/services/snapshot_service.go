package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paygate_backend/internal/ledger"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/services/dto"
	"paygate_backend/internal/storage"
	"paygate_backend/pkg/apperrors"

	"github.com/google/uuid"
)

const SnapshotPrefix = "ledger/snapshots/"

type SnapshotService interface {
	CreateSnapshot(ctx context.Context) (*dto.SnapshotResponse, error)
	ListSnapshots(ctx context.Context) (*dto.SnapshotListResponse, error)
	OpenSnapshot(ctx context.Context, name string) (io.ReadCloser, error)
}

type SnapshotServiceImpl struct {
	ledger  ledger.Ledger
	storage storage.Storage
	now     func() time.Time
}

func NewSnapshotService(l ledger.Ledger, s storage.Storage) SnapshotService {
	return &SnapshotServiceImpl{ledger: l, storage: s, now: time.Now}
}

// snapshotKey names a snapshot by UTC time with a random suffix, so keys sort
// by age and two snapshots in the same second never share one.
func snapshotKey(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return SnapshotPrefix + at.UTC().Format("20060102T150405Z") + "-" + suffix + ".json"
}

// CreateSnapshot copies the whole ledger document into object storage.
func (s *SnapshotServiceImpl) CreateSnapshot(ctx context.Context) (*dto.SnapshotResponse, error) {
	doc, err := s.ledger.Export(ctx)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to export ledger", err)
		return nil, ledgerError(err)
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	key := snapshotKey(s.now())
	if err := s.storage.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		logger.CtxWithError(ctx, "Failed to store ledger snapshot", err, "key", key)
		return nil, apperrors.Wrap(err, apperrors.CodeStorageIO, "storage", "Snapshot could not be stored", http.StatusInternalServerError)
	}

	records := 0
	for _, list := range doc {
		records += len(list)
	}

	logger.CtxInfo(ctx, "Ledger snapshot stored", "key", key, "customers", len(doc), "records", records)
	return &dto.SnapshotResponse{
		Path:      key,
		URL:       s.storage.URL(key),
		Customers: len(doc),
		Records:   records,
	}, nil
}

func (s *SnapshotServiceImpl) ListSnapshots(ctx context.Context) (*dto.SnapshotListResponse, error) {
	objects, err := s.storage.List(ctx, SnapshotPrefix)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to list snapshots", err)
		return nil, apperrors.Wrap(err, apperrors.CodeStorageIO, "storage", "Snapshots could not be listed", http.StatusInternalServerError)
	}
	return &dto.SnapshotListResponse{Snapshots: objects}, nil
}

// OpenSnapshot returns the content of one snapshot by file name.
func (s *SnapshotServiceImpl) OpenSnapshot(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || !strings.HasSuffix(name, ".json") {
		return nil, apperrors.NewBadRequestError("Invalid snapshot name")
	}

	rc, err := s.storage.Open(ctx, SnapshotPrefix+name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("storage", fmt.Sprintf("Snapshot %s not found", name))
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorageIO, "storage", "Snapshot could not be read", http.StatusInternalServerError)
	}
	return rc, nil
}
