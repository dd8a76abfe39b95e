package services

import (
	"errors"

	"paygate_backend/internal/gateway"
	"paygate_backend/internal/ledger"
	"paygate_backend/pkg/apperrors"
)

// ledgerError maps ledger sentinels to client-facing errors.
func ledgerError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ledger.ErrCorrupt):
		return apperrors.ErrStorageCorrupted(err)
	case errors.Is(err, ledger.ErrIO):
		return apperrors.ErrStorageIO(err)
	case errors.Is(err, ledger.ErrEmptyCustomer), errors.Is(err, ledger.ErrInvalidRecord):
		return apperrors.ValidationError(map[string]string{"record": err.Error()}).WithError(err)
	default:
		return apperrors.InternalError(err)
	}
}

func gatewayError(name string, err error) *apperrors.AppError {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return apperrors.GatewayError(err, gwErr.Gateway, gwErr.Detail)
	}
	return apperrors.GatewayError(err, name, err.Error())
}
