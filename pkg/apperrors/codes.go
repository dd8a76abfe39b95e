package apperrors

// ErrorCode is the machine-readable category sent to clients.
type ErrorCode string

const (
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken     ErrorCode = "INVALID_TOKEN"

	// Payment gateway failures (remote rejection, transport error, timeout).
	CodeGatewayError ErrorCode = "GATEWAY_ERROR"
	// A settled payment that was started for a different customer.
	CodeCustomerMismatch ErrorCode = "PAYMENT_CUSTOMER_MISMATCH"

	// Purchase ledger failures.
	CodeStorageCorrupted ErrorCode = "STORAGE_CORRUPTED"
	CodeStorageIO        ErrorCode = "STORAGE_IO_ERROR"
)
