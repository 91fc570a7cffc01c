package broker

import (
	"errors"
	"fmt"
)

// criticalAPICodes maps broker error codes that must never be retried.
// Hitting one of these means the account cannot trade right now; retrying
// only hammers the API, so the engine treats them as circuit-breaker input.
var criticalAPICodes = map[int]string{
	40310000: "INSUFFICIENT_BUYING_POWER", // not enough cash for the order
	40310100: "INSUFFICIENT_QTY",          // not enough shares to sell
	40110000: "ACCOUNT_SUSPENDED",         // account blocked by the broker
	40120000: "TRADING_DISALLOWED",        // trading disabled on the account
	40130000: "PATTERN_DAY_TRADER",        // PDT restriction active
	42210000: "ASSET_NOT_TRADABLE",        // symbol halted or not tradable
}

// CriticalError is a broker rejection that retrying cannot fix.
type CriticalError struct {
	Code    int
	Message string
}

func (e *CriticalError) Error() string {
	if name, ok := criticalAPICodes[e.Code]; ok {
		return fmt.Sprintf("broker critical error %d (%s): %s", e.Code, name, e.Message)
	}
	return fmt.Sprintf("broker critical error %d: %s", e.Code, e.Message)
}

// IsCritical reports whether err is (or wraps) a non-retryable broker error.
func IsCritical(err error) bool {
	var ce *CriticalError
	return errors.As(err, &ce)
}

// apiError is the broker's error payload shape.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// classify turns an API error payload into either a critical error or a
// plain (retryable at the policy's discretion) error.
func classify(httpStatus int, apiErr apiError) error {
	if _, ok := criticalAPICodes[apiErr.Code]; ok {
		return &CriticalError{Code: apiErr.Code, Message: apiErr.Message}
	}
	// 403 without a known code is still a hard stop: the broker refused
	// the request for account-level reasons.
	if httpStatus == 403 {
		return &CriticalError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("broker error (status %d, code %d): %s", httpStatus, apiErr.Code, apiErr.Message)
}
