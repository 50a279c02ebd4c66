package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected trade or launch.
type ErrorKind string

const (
	KindInvalidAmount      ErrorKind = "INVALID_AMOUNT"
	KindSupplyExceeded     ErrorKind = "SUPPLY_EXCEEDED"
	KindInsufficientSupply ErrorKind = "INSUFFICIENT_SUPPLY"
	KindSlippageExceeded   ErrorKind = "SLIPPAGE_EXCEEDED"
	KindCurveMigrated      ErrorKind = "CURVE_MIGRATED"
	KindInvalidCurveParams ErrorKind = "INVALID_CURVE_PARAMS"
)

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrSupplyExceeded     = errors.New("supply exceeded")
	ErrInsufficientSupply = errors.New("insufficient supply")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrCurveMigrated      = errors.New("curve migrated")
	ErrInvalidCurveParams = errors.New("invalid curve params")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidAmount:      ErrInvalidAmount,
	KindSupplyExceeded:     ErrSupplyExceeded,
	KindInsufficientSupply: ErrInsufficientSupply,
	KindSlippageExceeded:   ErrSlippageExceeded,
	KindCurveMigrated:      ErrCurveMigrated,
	KindInvalidCurveParams: ErrInvalidCurveParams,
}

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	return string(k)
}

// TradeError is a validation failure with the offending mint and a detail
// message. It unwraps to the sentinel for its kind.
type TradeError struct {
	Kind   ErrorKind
	Mint   string
	Detail string
}

// NewTradeError creates a TradeError with a formatted detail.
func NewTradeError(kind ErrorKind, mint, format string, args ...any) *TradeError {
	return &TradeError{Kind: kind, Mint: mint, Detail: fmt.Sprintf(format, args...)}
}

func (e *TradeError) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.Mint != "" {
		msg += " (" + e.Mint + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the sentinel error for the kind.
func (e *TradeError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// KindOf extracts the ErrorKind from err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
