// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import "errors"

// Kind classifies a failed call
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindInsufficientBalance
	KindPriceCondition
	KindTiming
	KindReentrancy
	KindOracle
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindPriceCondition:
		return "price_condition"
	case KindTiming:
		return "timing"
	case KindReentrancy:
		return "reentrancy"
	case KindOracle:
		return "oracle"
	default:
		return "unknown"
	}
}

// Error is a farm failure with a stable reason string
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	// Validation
	ErrEmptyDeposit        = newError(KindValidation, "silo: no stablecoin value in deposit")
	ErrEmptyRequest        = newError(KindValidation, "farm: empty request")
	ErrLengthMismatch      = newError(KindValidation, "farm: seasons and amounts differ in length")
	ErrZeroAmount          = newError(KindValidation, "farm: amount must be positive")
	ErrFutureCrate         = newError(KindValidation, "silo: crate season is in the future")
	ErrSowBelowMinimum     = newError(KindValidation, "field: must receive non-zero pods")
	ErrWithdrawalNotReady  = newError(KindValidation, "claim: withdrawal not receivable")
	ErrWithdrawalEmpty     = newError(KindValidation, "claim: withdrawal is empty")
	ErrInsufficientPayment = newError(KindValidation, "farm: attached payment too low")
	ErrBuyBothAssets       = newError(KindValidation, "farm: cannot buy both assets")

	// Balances
	ErrNotEnoughStablecoin      = newError(KindInsufficientBalance, "convert: not enough stablecoin")
	ErrNotEnoughLP              = newError(KindInsufficientBalance, "convert: not enough LP")
	ErrPlotNotHarvestable       = newError(KindInsufficientBalance, "field: plot not harvestable")
	ErrInsufficientSoil         = newError(KindInsufficientBalance, "field: sowing more than available soil")
	ErrInsufficientCrateBalance = newError(KindInsufficientBalance, "silo: crate balance too low")
	ErrLedger                   = newError(KindInsufficientBalance, "farm: token movement failed")

	// Price
	ErrPriceMustExceedPeg  = newError(KindPriceCondition, "convert: price must be above peg")
	ErrPriceMustBeBelowPeg = newError(KindPriceCondition, "convert: price must be below peg")

	// Timing
	ErrTooSoon = newError(KindTiming, "season: still current season")

	// Reentrancy
	ErrReentrant = newError(KindReentrancy, "farm: reentrant call")

	// Oracle
	ErrOracleUnavailable = newError(KindOracle, "season: oracle unavailable")
)

// KindOf reports the kind of a farm error, or KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	// A nested call rejected inside a token hook surfaces as a ledger failure
	if errors.Is(err, ErrReentrant) {
		return KindReentrancy
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
