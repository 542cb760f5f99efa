package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrTickerFetch         = errors.New("ticker fetch failed")
	ErrInvalidResponse     = errors.New("invalid response")
	ErrSchemaMismatch      = errors.New("schema mismatch")
	ErrParse               = errors.New("parse error")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrGridTooLarge        = errors.New("time grid too large")
)

// StageError carries the context of a failed pipeline step: which stage,
// which symbol and the offending value.
type StageError struct {
	Stage  string
	Symbol string
	Value  string
	Err    error
}

func (e *StageError) Error() string {
	parts := make([]string, 0, 3)
	if e.Stage != "" {
		parts = append(parts, "stage="+e.Stage)
	}
	if e.Symbol != "" {
		parts = append(parts, "symbol="+e.Symbol)
	}
	if e.Value != "" {
		parts = append(parts, fmt.Sprintf("value=%q", e.Value))
	}
	return fmt.Sprintf("%v (%s)", e.Err, strings.Join(parts, " "))
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a StageError.
func NewStageError(stage, symbol, value string, err error) *StageError {
	return &StageError{Stage: stage, Symbol: symbol, Value: value, Err: err}
}
