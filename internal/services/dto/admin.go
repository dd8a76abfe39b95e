package dto

import (
	"time"

	"paygate_backend/internal/storage"
)

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SnapshotResponse struct {
	Path      string `json:"path"`
	URL       string `json:"url"`
	Customers int    `json:"customers"`
	Records   int    `json:"records"`
}

type SnapshotListResponse struct {
	Snapshots []storage.Object `json:"snapshots"`
}
