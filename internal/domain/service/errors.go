package service

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means no trained model is loaded.
	ErrModelUnavailable = errors.New("model not loaded")
	// ErrTickerNotFound means the provider returned no data for the symbol.
	ErrTickerNotFound = errors.New("ticker not found")
	// ErrInsufficientHistory means fewer observations than the model window.
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidHorizon      = errors.New("horizon must be positive")
)

// InsufficientHistoryError carries how many observations were needed.
type InsufficientHistoryError struct {
	Need int
	Have int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: need %d observations, have %d", e.Need, e.Have)
}

func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}
