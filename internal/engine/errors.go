package engine

import (
	"errors"
	"fmt"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/ledger"
	"github.com/0xthrpw/remand/internal/store"
)

// Code categorizes a protocol failure. The strings are the protocol's
// wire-level error names and are stable.
type Code string

const (
	// Authorization.
	CodeOwnerMismatch  Code = "OwnerMismatch"
	CodeNotOfferOwner  Code = "NotOfferOwner"
	CodeNotOfferTarget Code = "NotOfferTarget"

	// State.
	CodeOfferNotFound            Code = "OfferNotFound"
	CodeOfferAlreadyAccepted     Code = "OfferAlreadyAccepted"
	CodeOfferNotAccepted         Code = "OfferNotAccepted"
	CodeCantRescindAcceptedOffer Code = "CantRescindAcceptedOffer"

	// Timing.
	CodeOfferExpired   Code = "OfferExpired"
	CodeIncompleteTerm Code = "IncompleteTerm"

	// Payload validity.
	CodeNonZeroAcceptedAt Code = "NonZeroAcceptedAt"
	CodeTermTooShort      Code = "TermTooShort"
	CodeAskIsCollateral   Code = "AskIsCollateral"
	CodeInvalidAsset      Code = "InvalidAsset"

	// Custody, bubbled from the transfer layer.
	CodeInsufficientBalanceOrAllowance Code = "InsufficientBalanceOrAllowance"
	CodeNotOwnerOrUnauthorized         Code = "NotOwnerOrUnauthorized"
)

// ProtocolError is a failed protocol operation. Every failure surfaces
// synchronously to the caller with its specific code; nothing is retried
// internally and no operation silently no-ops.
type ProtocolError struct {
	Code    Code
	Message string

	// Key identifies the affected offer, when one exists.
	Key string
	// Actor is the caller whose operation failed.
	Actor asset.Address

	// Err is the underlying cause, for custody failures.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (offer=%s, caller=%s)", e.Code, e.Message, e.Key, e.Actor)
	}
	return fmt.Sprintf("%s: %s (caller=%s)", e.Code, e.Message, e.Actor)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the protocol error code from err, unwrapping as needed.
func CodeOf(err error) (Code, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given protocol error code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

func protoErr(code Code, key string, actor asset.Address, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Key:     key,
		Actor:   actor,
	}
}

// custodyErr translates a transfer-layer failure into the protocol's
// custody error codes, preserving the cause for inspection.
func custodyErr(err error, key string, actor asset.Address) *ProtocolError {
	code := CodeInsufficientBalanceOrAllowance
	if errors.Is(err, ledger.ErrNotOwner) {
		code = CodeNotOwnerOrUnauthorized
	}
	return &ProtocolError{
		Code:    code,
		Message: "asset transfer failed",
		Key:     key,
		Actor:   actor,
		Err:     err,
	}
}

// notFoundErr translates a store miss into the protocol error.
func notFoundErr(err error, key string, actor asset.Address) error {
	if errors.Is(err, store.ErrOfferNotFound) {
		return protoErr(CodeOfferNotFound, key, actor, "no offer under key")
	}
	return err
}
