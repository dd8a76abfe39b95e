package apperrors

import (
	"net/http"
)

// GatewayError reports a failed call to a payment gateway. detail is the
// gateway-provided payload and is passed through to the client untouched.
func GatewayError(err error, gateway string, detail interface{}) *AppError {
	return Wrap(err, CodeGatewayError, "payment", "Payment gateway error: "+gateway, http.StatusInternalServerError).
		WithDetails(detail)
}

// ErrCustomerMismatch rejects a commit whose settlement belongs to another
// customer's checkout. Nothing is recorded.
func ErrCustomerMismatch(gateway string) *AppError {
	return New(CodeCustomerMismatch, "payment", "Payment does not belong to this customer", http.StatusConflict).
		WithDetails(map[string]string{"gateway": gateway})
}

// ErrStorageCorrupted means the purchase ledger exists but cannot be parsed.
// It must never be treated as an empty history.
func ErrStorageCorrupted(err error) *AppError {
	return Wrap(err, CodeStorageCorrupted, "ledger", "Purchase history is unreadable", http.StatusInternalServerError)
}

// ErrStorageIO is a transient ledger read/write failure; retrying the whole request is safe.
func ErrStorageIO(err error) *AppError {
	return Wrap(err, CodeStorageIO, "ledger", "Purchase history storage is unavailable", http.StatusInternalServerError)
}

// ErrUnknownGateway is returned when a request names a gateway that is not configured.
func ErrUnknownGateway(name string) *AppError {
	return New(CodeValidationFailed, "validation", "Unknown payment gateway", http.StatusBadRequest).
		WithDetails(map[string]string{"gateway": name})
}

var ErrInvalidCredentials = New(
	CodeUnauthorized,
	"auth",
	"Invalid username or password",
	http.StatusUnauthorized,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)
