// Package errs defines the error taxonomy shared by the migration stages.
//
// Every failure that leaves a stage is wrapped in an *Error carrying the kind,
// the table being migrated and, where it applies, the chunk index. Callers
// branch on the kind with Is and print the error as a one-line diagnostic.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a migration failure.
type Kind string

const (
	// KindConnectivity means a store could not be opened or was lost.
	KindConnectivity Kind = "connectivity"
	// KindSchema means an expected table or column is absent.
	KindSchema Kind = "schema"
	// KindMapping means a raw row could not be turned into a record.
	KindMapping Kind = "mapping"
	// KindWrite means the target rejected a bulk statement.
	KindWrite Kind = "write"
	// KindCanceled means the run stopped at a chunk boundary on request.
	KindCanceled Kind = "canceled"
)

// NoChunk marks errors that are not tied to a specific chunk.
const NoChunk = -1

// Error is a classified migration failure.
type Error struct {
	Kind  Kind
	Table string
	Chunk int
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Table == "":
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Chunk == NoChunk:
		return fmt.Sprintf("%s error: table=%s: %v", e.Kind, e.Table, e.Err)
	default:
		return fmt.Sprintf("%s error: table=%s chunk=%d: %v", e.Kind, e.Table, e.Chunk, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given classification. A nil err yields nil.
func New(kind Kind, table string, chunk int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Table: table, Chunk: chunk, Err: err}
}

// Connectivity classifies err as a connectivity failure.
func Connectivity(table string, err error) error {
	return New(KindConnectivity, table, NoChunk, err)
}

// Schema classifies err as a schema precondition failure.
func Schema(table string, err error) error {
	return New(KindSchema, table, NoChunk, err)
}

// Mapping classifies err as a mapping failure within a chunk.
func Mapping(table string, chunk int, err error) error {
	return New(KindMapping, table, chunk, err)
}

// Write classifies err as a rejected chunk write.
func Write(table string, chunk int, err error) error {
	return New(KindWrite, table, chunk, err)
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind == kind {
		return true
	}
	return Is(e.Err, kind)
}

// KindOf returns the outermost classification of err, or "" when err is not
// classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// WithContext attaches a table and chunk to an already classified error that
// lacks them. Unclassified errors are returned as write errors when they stem
// from the target, so callers pass the fallback kind explicitly.
func WithContext(err error, fallback Kind, table string, chunk int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var e *Error
		if !errors.As(err, &e) {
			return New(KindCanceled, table, chunk, err)
		}
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Table != "" && e.Chunk != NoChunk {
			return err
		}
		out := *e
		if out.Table == "" {
			out.Table = table
		}
		if out.Chunk == NoChunk {
			out.Chunk = chunk
		}
		return &out
	}
	return New(fallback, table, chunk, err)
}
