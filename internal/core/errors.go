package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidDate        = errors.New("date cannot be zero")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrCategoryDirection  = errors.New("category not allowed for direction")
	ErrInvoiceOnIncome    = errors.New("invoice reference is only allowed on expenses")
	ErrCashCountOnExpense = errors.New("cash count is only allowed on income")
	ErrInvalidFund        = errors.New("invalid fund")
	ErrInvalidPercentage  = errors.New("percentage must be between 0 and 100")

	// ErrConfigurationDegenerate marks a recomputation in which the proportional
	// percentages summed to zero. It is reported, never fatal.
	ErrConfigurationDegenerate = errors.New("proportional fund percentages sum to zero")
)

// ValidationError is returned when an entry or configuration is rejected
// before reaching the engine. It wraps one of the sentinel errors above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Err.Error()
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Write steps reported by PartialWriteError.
const (
	StepEntries            = "entries"
	StepEmergencyIncrement = "emergency_increment"
)

// PartialWriteError reports a multi-step write that stopped half way: Written
// entries are persisted, Pending ones are not. The ledger is still derivable;
// the caller decides whether to retry.
type PartialWriteError struct {
	Written []Entry
	Pending []Entry
	Step    string
	Err     error
}

func (e *PartialWriteError) Error() string {
	ids := make([]string, 0, len(e.Written))
	for _, w := range e.Written {
		ids = append(ids, w.ID)
	}
	return fmt.Sprintf("partial write at %s (written: [%s], pending: %d): %v",
		e.Step, strings.Join(ids, ","), len(e.Pending), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
