package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPlanRestricted      = errors.New("plan restriction")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrCreditDeduction     = errors.New("credit deduction failed")
	ErrInvalidTaskConfig   = errors.New("invalid task config")
	ErrVersionConflict     = errors.New("balance version conflict")
)

// InsufficientCreditsError carries the amounts behind an insufficient-credits
// rejection so callers can report required versus available.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
