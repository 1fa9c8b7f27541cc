package oracle

import (
	"errors"
	"net/http"

	"fxoracle/native/common"
)

var (
	ErrPriceTooStale         = errors.New("oracle: price feed is stale")
	ErrInvalidPrice          = errors.New("oracle: price must be positive")
	ErrConfidenceTooWide     = errors.New("oracle: confidence interval too wide")
	ErrFeedNotReady          = errors.New("oracle: feed snapshot not readable")
	ErrQuoteExpired          = errors.New("oracle: quote expired")
	ErrQuoteAlreadyUsed      = errors.New("oracle: quote already used")
	ErrQuoteNotFound         = errors.New("oracle: quote not found")
	ErrQuoteExists           = errors.New("oracle: quote nonce already used")
	ErrSlippageExceeded      = errors.New("oracle: output below minimum")
	ErrZeroAmount            = errors.New("oracle: amount must be positive")
	ErrZeroOutput            = errors.New("oracle: computed output is zero")
	ErrFeedAlreadyRegistered = errors.New("oracle: feed symbol already registered")
	ErrFeedNotFound          = errors.New("oracle: feed not found")
	ErrSymbolTooLong         = errors.New("oracle: symbol too long")
	ErrRegistryFull          = errors.New("oracle: feed registry full")
	ErrRegistryExists        = errors.New("oracle: feed registry already initialised")
	ErrRegistryNotFound      = errors.New("oracle: feed registry not initialised")
	ErrOraclePaused          = errors.New("oracle: paused")
	ErrOracleExists          = errors.New("oracle: instrument already configured")
	ErrOracleNotFound        = errors.New("oracle: instrument not configured")
	ErrUnauthorized          = errors.New("oracle: unauthorized")
	ErrNoPendingTransfer     = errors.New("oracle: no pending authority transfer")
	ErrInvalidCpiMultiplier  = errors.New("oracle: cpi multiplier must be positive")
	ErrCpiUpdateTooSoon      = errors.New("oracle: cpi update too soon")
	ErrMathOverflow          = errors.New("oracle: math overflow")
	ErrDivisionByZero        = errors.New("oracle: division by zero")
	ErrFeedMismatch          = errors.New("oracle: feed account mismatch")
	ErrInvalidParams         = errors.New("oracle: invalid parameters")
)

// ErrorKind groups failures by the remedy available to the caller.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindData          ErrorKind = "data"
	KindProtocol      ErrorKind = "protocol"
	KindArithmetic    ErrorKind = "arithmetic"
	KindAuthorization ErrorKind = "authorization"
	KindInternal      ErrorKind = "internal"
)

type classification struct {
	kind      ErrorKind
	status    int
	retryable bool
}

var errorClasses = []struct {
	err   error
	class classification
}{
	{ErrZeroAmount, classification{KindValidation, http.StatusBadRequest, false}},
	{ErrSymbolTooLong, classification{KindValidation, http.StatusBadRequest, false}},
	{ErrInvalidParams, classification{KindValidation, http.StatusBadRequest, false}},
	{ErrInvalidCpiMultiplier, classification{KindValidation, http.StatusBadRequest, false}},
	{ErrSlippageExceeded, classification{KindValidation, http.StatusBadRequest, false}},
	{ErrZeroOutput, classification{KindValidation, http.StatusBadRequest, false}},
	{ErrFeedNotFound, classification{KindData, http.StatusNotFound, false}},
	{ErrFeedMismatch, classification{KindData, http.StatusBadRequest, false}},
	{ErrFeedNotReady, classification{KindData, http.StatusServiceUnavailable, false}},
	{ErrInvalidPrice, classification{KindData, http.StatusServiceUnavailable, false}},
	{ErrPriceTooStale, classification{KindData, http.StatusServiceUnavailable, true}},
	{ErrConfidenceTooWide, classification{KindData, http.StatusServiceUnavailable, true}},
	{ErrRegistryNotFound, classification{KindData, http.StatusNotFound, false}},
	{ErrOracleNotFound, classification{KindData, http.StatusNotFound, false}},
	{ErrQuoteNotFound, classification{KindProtocol, http.StatusNotFound, false}},
	{ErrQuoteExpired, classification{KindProtocol, http.StatusGone, false}},
	{ErrQuoteAlreadyUsed, classification{KindProtocol, http.StatusConflict, false}},
	{ErrQuoteExists, classification{KindProtocol, http.StatusConflict, false}},
	{ErrFeedAlreadyRegistered, classification{KindProtocol, http.StatusConflict, false}},
	{ErrRegistryExists, classification{KindProtocol, http.StatusConflict, false}},
	{ErrOracleExists, classification{KindProtocol, http.StatusConflict, false}},
	{ErrRegistryFull, classification{KindProtocol, http.StatusConflict, false}},
	{ErrCpiUpdateTooSoon, classification{KindProtocol, http.StatusTooManyRequests, true}},
	{ErrOraclePaused, classification{KindProtocol, http.StatusServiceUnavailable, false}},
	{common.ErrModulePaused, classification{KindProtocol, http.StatusServiceUnavailable, false}},
	{ErrMathOverflow, classification{KindArithmetic, http.StatusUnprocessableEntity, false}},
	{ErrDivisionByZero, classification{KindArithmetic, http.StatusUnprocessableEntity, false}},
	{ErrUnauthorized, classification{KindAuthorization, http.StatusForbidden, false}},
	{ErrNoPendingTransfer, classification{KindAuthorization, http.StatusForbidden, false}},
}

// Classification describes how a failure should be surfaced.
type Classification struct {
	Kind      ErrorKind
	Status    int
	Retryable bool
}

// Classify maps an engine error onto its kind and an HTTP-equivalent status.
// Unknown errors are internal.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Status: http.StatusOK}
	}
	for _, entry := range errorClasses {
		if errors.Is(err, entry.err) {
			return Classification{Kind: entry.class.kind, Status: entry.class.status, Retryable: entry.class.retryable}
		}
	}
	return Classification{Kind: KindInternal, Status: http.StatusInternalServerError}
}
