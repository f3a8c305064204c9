// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Error kinds shared across the engine. Callers classify failures with
// errors.Is against these sentinels; messages carry the detail.
var (
	// ErrValidation marks malformed selectors, missing input files, and
	// keyword selections that cannot be resolved without an operator.
	ErrValidation = errors.New("validation error")

	// ErrSafetyAbort marks a deletion refused by the safety threshold or
	// by a missing confirmation. No mutation has occurred.
	ErrSafetyAbort = errors.New("safety abort")

	// ErrRetryableIO marks a transient I/O failure that was retried with
	// backoff and only surfaced after exhausting attempts.
	ErrRetryableIO = errors.New("retryable io")

	// ErrConsistency marks a detected divergence between the vector store
	// and the knowledge graph, or an interrupted mutation found at reload.
	ErrConsistency = errors.New("consistency error")

	// ErrData marks corrupt batch files and content-hash conflicts.
	ErrData = errors.New("data error")
)

// Validationf wraps a formatted message as an ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SafetyAbortf wraps a formatted message as an ErrSafetyAbort.
func SafetyAbortf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSafetyAbort, fmt.Sprintf(format, args...))
}

// Consistencyf wraps a formatted message as an ErrConsistency.
func Consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// Dataf wraps a formatted message as an ErrData.
func Dataf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}
