package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Account errors
	CodeAccountHolderEmpty    Code = "ACCOUNT_HOLDER_EMPTY"
	CodeAccountAlreadyOpened  Code = "ACCOUNT_ALREADY_OPENED"
	CodeAccountClosed         Code = "ACCOUNT_CLOSED"
	CodeAccountAlreadyClosed  Code = "ACCOUNT_ALREADY_CLOSED"
	CodeAccountCurrencyMixed  Code = "ACCOUNT_CURRENCY_MIXED"
	CodeAccountIDRequired     Code = "ACCOUNT_ID_REQUIRED"
	CodeAmountNotPositive     Code = "AMOUNT_NOT_POSITIVE"
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeCommandTypeUnknown    Code = "COMMAND_TYPE_UNKNOWN"
	CodeCommandPayloadInvalid Code = "COMMAND_PAYLOAD_INVALID"

	// Storage errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeVersionConflict Code = "VERSION_CONFLICT"
	CodeBatchInvalid    Code = "BATCH_INVALID"

	// Infrastructure errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps an error code to an HTTP status code for the API layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeVersionConflict:
		return http.StatusConflict
	case CodeAccountHolderEmpty, CodeAccountIDRequired, CodeAmountNotPositive,
		CodeCommandTypeUnknown, CodeCommandPayloadInvalid:
		return http.StatusBadRequest
	case CodeAccountAlreadyOpened, CodeAccountClosed, CodeAccountAlreadyClosed,
		CodeAccountCurrencyMixed, CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case CodeBatchInvalid, CodeInternal, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
