package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes. Callers classify errors by code, never by message text.
const (
	CodeInvalidInput         = "INPUT_001"
	CodeConnection           = "DAEMON_001"
	CodeDaemon               = "DAEMON_002"
	CodeTransientNetwork     = "DAEMON_003"
	CodeBroadcastUnknown     = "DAEMON_004"
	CodeRowNotFound          = "LEDGER_001"
	CodeInsufficientFunds    = "LEDGER_002"
	CodeReconciliationHazard = "LEDGER_003"
	CodeWithdrawalNotFound   = "LEDGER_004"
	CodeWithdrawalState      = "LEDGER_005"
	CodeUnknownCoin          = "LEDGER_006"
	CodeInvalidToken         = "AUTH_001"
	CodeRateLimitExceeded    = "RATE_001"
	CodeInternal             = "SYS_001"
	CodeLockTimeout          = "SYS_002"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err, or any error it wraps, is an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Input (INPUT) ----

// InvalidInput rejects a malformed caller-supplied parameter.
func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

// ---- Coin daemon (DAEMON) ----

func ErrConnection(coin string, err error) *AppError {
	return Wrap(CodeConnection, fmt.Sprintf("cannot connect to %s daemon", coin), http.StatusServiceUnavailable, err)
}

func ErrDaemon(op string, err error) *AppError {
	return Wrap(CodeDaemon, fmt.Sprintf("daemon call %s failed", op), http.StatusBadGateway, err)
}

func ErrTransientNetwork(op string, err error) *AppError {
	return Wrap(CodeTransientNetwork, fmt.Sprintf("daemon call %s interrupted", op), http.StatusServiceUnavailable, err)
}

// ErrBroadcastUnknown means a send request may or may not have reached the
// chain: the transport failed or the reply could not be read.
func ErrBroadcastUnknown(err error) *AppError {
	return Wrap(CodeBroadcastUnknown, "sendtoaddress outcome unknown", http.StatusBadGateway, err)
}

// ---- Ledger (LEDGER) ----

func ErrRowNotFound(username, coin string) *AppError {
	return New(CodeRowNotFound, fmt.Sprintf("no %s ledger row for %s", coin, username), http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusPaymentRequired)
}

// ErrReconciliationHazard marks a committed on-chain action whose ledger
// record could not be written. It must be resolved by an operator.
func ErrReconciliationHazard(withdrawalID, txid string, err error) *AppError {
	return Wrap(CodeReconciliationHazard,
		fmt.Sprintf("withdrawal %s broadcast as %s but ledger not updated", withdrawalID, txid),
		http.StatusInternalServerError, err)
}

func ErrWithdrawalNotFound(id string) *AppError {
	return New(CodeWithdrawalNotFound, fmt.Sprintf("withdrawal %s not found", id), http.StatusNotFound)
}

func ErrWithdrawalState(id, status string) *AppError {
	return New(CodeWithdrawalState, fmt.Sprintf("withdrawal %s is %s", id, status), http.StatusConflict)
}

func ErrUnknownCoin(coin string) *AppError {
	return New(CodeUnknownCoin, fmt.Sprintf("coin %s is not configured", coin), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
