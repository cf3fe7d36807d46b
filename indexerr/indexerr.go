// Copyright 2021 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package indexerr defines the typed error kinds returned across the public
// index-engine surface. Internal background actions never propagate these;
// they log and increment a counter instead (see stats.Maintenance).
package indexerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. Kinds are comparable with errors.Is against the
// exported sentinel values below.
type Kind int

const (
	// KindNotFound: index by name does not exist.
	KindNotFound Kind = iota
	// KindAlreadyExists: create_index with a duplicate name.
	KindAlreadyExists
	// KindUnsupported: e.g. range on a hash index, prefix on a non-B-tree composite.
	KindUnsupported
	// KindUniquenessViolation: unique index receiving a duplicate key.
	KindUniquenessViolation
	// KindCardinalityExceeded: bitmap distinct-value guard.
	KindCardinalityExceeded
	// KindTimeout: operation exceeded the configured bound.
	KindTimeout
	// KindCorruption: structural invariant detected broken.
	KindCorruption
	// KindEvaluationError: condition or predicate evaluator raised.
	KindEvaluationError
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnsupported:
		return "unsupported"
	case KindUniquenessViolation:
		return "uniqueness_violation"
	case KindCardinalityExceeded:
		return "cardinality_exceeded"
	case KindTimeout:
		return "timeout"
	case KindCorruption:
		return "corruption"
	case KindEvaluationError:
		return "evaluation_error"
	default:
		return "unknown"
	}
}

// Error is the typed error carried across the public surface. It never
// carries a stack trace for user-facing operations (§7: "no stack traces");
// the stack-carrying github.com/pkg/errors wrap is reserved for internal
// background-action logging, see manager.rebuildIndex.
type Error struct {
	Kind   Kind
	Index  string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Index == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("index %q: %s: %s", e.Index, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, indexerr.NotFound) etc. match by Kind alone,
// independent of Index/Reason/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newKind(k Kind) *Error { return &Error{Kind: k} }

// Sentinel values for errors.Is comparisons, e.g. errors.Is(err, indexerr.NotFound).
var (
	NotFound            = newKind(KindNotFound)
	AlreadyExists       = newKind(KindAlreadyExists)
	Unsupported         = newKind(KindUnsupported)
	UniquenessViolation = newKind(KindUniquenessViolation)
	CardinalityExceeded = newKind(KindCardinalityExceeded)
	Timeout             = newKind(KindTimeout)
	Corruption          = newKind(KindCorruption)
	EvaluationError     = newKind(KindEvaluationError)
)

// New builds a typed error for the named index.
func New(kind Kind, index, reason string) *Error {
	return &Error{Kind: kind, Index: index, Reason: reason}
}

// Wrap builds a typed error that also carries an underlying cause.
func Wrap(kind Kind, index, reason string, cause error) *Error {
	return &Error{Kind: kind, Index: index, Reason: reason, Cause: cause}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
