package engine

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("invoice validation failed")

// ValidationKind enumerates the numeric invariants the engine enforces.
type ValidationKind string

const (
	NegativeQuantityOrPrice ValidationKind = "NegativeQuantityOrPrice"
	InvalidAdjustmentMode   ValidationKind = "InvalidAdjustmentMode"
	NegativeAdjustment      ValidationKind = "NegativeAdjustment"
)

// ValidationError reports a business invariant violated by the raw invoice.
// The caller has to fix the input and resubmit.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Index int // item index for item-level errors, -1 otherwise
	Value string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: items[%d].%s = %s", e.Kind, e.Index, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s = %q", e.Kind, e.Field, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// WarningCode identifies a deliberate, non-fatal fallback or clamp.
type WarningCode string

const (
	WarnUnsupportedCurrency WarningCode = "UnsupportedCurrency"
	WarnUnsupportedLanguage WarningCode = "UnsupportedLanguage"
	WarnNegativeTotal       WarningCode = "NegativeTotalClamped"
	WarnNegativeTaxBase     WarningCode = "NegativeTaxBaseClamped"
	WarnUnknownTemplate     WarningCode = "UnknownTemplate"
)

// Warning is attached to results whenever a fallback policy kicked in.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return string(w.Code) + ": " + w.Message
}
