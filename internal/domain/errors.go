package domain

import "fmt"

// SchemaMismatchError is returned at merge time when a source cannot be
// reconciled under the declared join keys: a required column is missing or
// duplicate records disagree on an identity field.
type SchemaMismatchError struct {
	Source string
	Key    string
	Detail string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in source %q (key %q): %s", e.Source, e.Key, e.Detail)
}

// InsufficientHistoryError is returned at feature time when windowed
// aggregates are requested for an account that lacks the configured minimum
// of prior records. Whether this drops the record or imputes a sentinel is
// a policy decision made by the engineer.
type InsufficientHistoryError struct {
	AccountID string
	Have      int
	Need      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for account %s: have %d prior records, need %d", e.AccountID, e.Have, e.Need)
}

// ConvergenceError is returned when model fitting diverges (NaN or Inf
// loss) and cannot proceed.
type ConvergenceError struct {
	Epoch int
	Loss  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("training diverged at epoch %d (loss=%v)", e.Epoch, e.Loss)
}

// InsufficientDataError is returned when a partition or fold is too small
// or degenerate (e.g. single-class) for the requested operation.
type InsufficientDataError struct {
	Detail string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Detail
}

// StageError wraps a stage failure with the pipeline stage it originated
// in, so run reports can surface where things went wrong.
type StageError struct {
	Stage RunStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
