// Package errs holds the business-outcome error taxonomy shared by the scheduling services.
// These errors describe expected conditions; anything that is not an *Error is treated as an
// unexpected failure by the transport layer.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	SlotConflict        Code = "SLOT_CONFLICT"
	SlotUnavailable     Code = "SLOT_UNAVAILABLE"
	RecurringFeatureOff Code = "RECURRING_FEATURE_OFF"
	RecurringDisabled   Code = "RECURRING_DISABLED"
	InvalidInterval     Code = "INVALID_INTERVAL"
	InvalidOccurrences  Code = "INVALID_OCCURRENCES"
	NoBookingsCreated   Code = "NO_BOOKINGS_CREATED"
	OrdersUnavailable   Code = "ORDERS_UNAVAILABLE"
	SeriesNotFound      Code = "SERIES_NOT_FOUND"
	NotOwner            Code = "NOT_OWNER"
	NotFound            Code = "NOT_FOUND"
	Validation          Code = "VALIDATION"
	InvalidTransition   Code = "INVALID_TRANSITION"
)

type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "" for unexpected errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
