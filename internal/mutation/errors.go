// Package mutation orchestrates run sheet writes: it validates requests,
// bounds their execution time, and classifies failures so transports and
// clients can decide between retrying and giving up.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/runsheetapp/runsheet/internal/store"
)

// Class partitions mutation failures by how the caller should react.
type Class string

const (
	// ClassNotFound covers missing and not-owned records alike.
	ClassNotFound Class = "not_found"
	// ClassValidation means the request itself is malformed; retrying the
	// same payload will fail the same way.
	ClassValidation Class = "validation"
	// ClassTransient means the write may succeed if retried: lock waits,
	// serialization failures, timeouts, connection trouble.
	ClassTransient Class = "transient"
	// ClassFatal is everything else.
	ClassFatal Class = "fatal"
)

// Error is a classified mutation failure.
type Error struct {
	Class Class
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Class))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(op string) *Error {
	return &Error{Class: ClassNotFound, Op: op, Msg: "not found"}
}

func invalid(op, field, msg string) *Error {
	return &Error{Class: ClassValidation, Op: op, Field: field, Msg: msg}
}

// classify wraps an arbitrary error from the store into a classified Error.
// Already-classified errors pass through unchanged.
func classify(op string, err error) *Error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	return &Error{Class: ClassOf(err), Op: op, Err: err}
}

// ClassOf maps an error to its failure class.
func ClassOf(err error) Class {
	if err == nil {
		return ClassFatal
	}

	var me *Error
	if errors.As(err, &me) {
		return me.Class
	}
	if errors.Is(err, store.ErrNotFound) {
		return ClassNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40001", // serialization_failure
			"40P01", // deadlock_detected
			"57014": // query_canceled (statement timeout)
			return ClassTransient
		}
		// Class 08 covers connection exceptions, 53 insufficient resources.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "53") {
			return ClassTransient
		}
		return ClassFatal
	}

	return ClassFatal
}
