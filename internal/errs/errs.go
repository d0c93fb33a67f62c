/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package errs defines the typed error kinds shared across the planning
// service, grouped the way the source's error taxonomy groups them: input,
// state, storage, external, and solver errors. Every kind has a sentinel so
// callers can test with errors.Is / errors.As without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on it (e.g. to
// decide whether a caller may retry).
type Kind string

const (
	KindUnknownTarget             Kind = "unknown_target"
	KindEmptySource                Kind = "empty_source"
	KindSchemaError                Kind = "schema_error"
	KindBusinessRuleError          Kind = "business_rule_error"
	KindReferentialIntegrityError  Kind = "referential_integrity_error"
	KindUnitInconsistency          Kind = "unit_inconsistency"
	KindIllegalState               Kind = "illegal_state"
	KindBatchNotFound              Kind = "batch_not_found"
	KindJobNotFound                Kind = "job_not_found"
	KindNotReady                   Kind = "not_ready"
	KindStorageError               Kind = "storage_error"
	KindRouteUnavailable           Kind = "route_unavailable"
	KindCoordinateMissing          Kind = "coordinate_missing"
	KindSolverUnavailable          Kind = "solver_unavailable"
	KindInfeasible                 Kind = "infeasible"
	KindQueueFull                  Kind = "queue_full"
	KindValidationIncomplete       Kind = "validation_incomplete"
)

// sentinels, one per kind, so errors.Is works without allocating a new Error
// for every comparison.
var (
	ErrUnknownTarget            = errors.New(string(KindUnknownTarget))
	ErrEmptySource              = errors.New(string(KindEmptySource))
	ErrSchemaError              = errors.New(string(KindSchemaError))
	ErrBusinessRuleError        = errors.New(string(KindBusinessRuleError))
	ErrReferentialIntegrity     = errors.New(string(KindReferentialIntegrityError))
	ErrUnitInconsistency        = errors.New(string(KindUnitInconsistency))
	ErrIllegalState             = errors.New(string(KindIllegalState))
	ErrBatchNotFound            = errors.New(string(KindBatchNotFound))
	ErrJobNotFound              = errors.New(string(KindJobNotFound))
	ErrNotReady                 = errors.New(string(KindNotReady))
	ErrStorageError             = errors.New(string(KindStorageError))
	ErrRouteUnavailable         = errors.New(string(KindRouteUnavailable))
	ErrCoordinateMissing        = errors.New(string(KindCoordinateMissing))
	ErrSolverUnavailable        = errors.New(string(KindSolverUnavailable))
	ErrInfeasible               = errors.New(string(KindInfeasible))
	ErrQueueFull                = errors.New(string(KindQueueFull))
	ErrValidationIncomplete     = errors.New(string(KindValidationIncomplete))
)

var sentinels = map[Kind]error{
	KindUnknownTarget:            ErrUnknownTarget,
	KindEmptySource:              ErrEmptySource,
	KindSchemaError:              ErrSchemaError,
	KindBusinessRuleError:        ErrBusinessRuleError,
	KindReferentialIntegrityError: ErrReferentialIntegrity,
	KindUnitInconsistency:        ErrUnitInconsistency,
	KindIllegalState:             ErrIllegalState,
	KindBatchNotFound:            ErrBatchNotFound,
	KindJobNotFound:              ErrJobNotFound,
	KindNotReady:                 ErrNotReady,
	KindStorageError:             ErrStorageError,
	KindRouteUnavailable:         ErrRouteUnavailable,
	KindCoordinateMissing:        ErrCoordinateMissing,
	KindSolverUnavailable:        ErrSolverUnavailable,
	KindInfeasible:               ErrInfeasible,
	KindQueueFull:                ErrQueueFull,
	KindValidationIncomplete:     ErrValidationIncomplete,
}

// Error wraps a Kind sentinel with operation context and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying cause, and falls back to the kind's sentinel
// so errors.Is(err, errs.ErrBatchNotFound) works even when Cause is nil.
func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return sentinels[e.Kind]
}

// Is matches the kind's sentinel, so errors.Is(err, errs.ErrStorageError)
// also holds for an Error built by Wrap whose Cause is some other error.
func (e *Error) Is(target error) bool {
	return target != nil && target == sentinels[e.Kind]
}

// New creates an Error of kind with a message, no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an Error of kind that wraps cause.
func Wrap(kind Kind, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Is reports whether err (or something it wraps) is of kind.
func Is(err error, kind Kind) bool {
	sentinel, ok := sentinels[kind]
	if !ok {
		return false
	}
	return errors.Is(err, sentinel)
}

// IsNotFound reports whether err is a BatchNotFound or JobNotFound error.
func IsNotFound(err error) bool {
	return Is(err, KindBatchNotFound) || Is(err, KindJobNotFound)
}

// IsStorageError reports whether err originated from a storage transaction.
func IsStorageError(err error) bool {
	return Is(err, KindStorageError)
}

// IsRetryable reports whether the caller may reasonably retry the operation:
// storage failures and external provider failures, but never input/state
// errors which will fail again with the same input.
func IsRetryable(err error) bool {
	return Is(err, KindStorageError) || Is(err, KindRouteUnavailable) || Is(err, KindSolverUnavailable)
}
