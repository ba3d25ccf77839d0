// Package apierrors defines the stable error kinds raised by the IMS core
// and their RFC 7807 (application/problem+json) HTTP representation (§7).
//
// Every component boundary (object store, cluster API, SSH, secret
// manager) catches library-native errors and maps them to a Kind here;
// nothing in the core propagates a third-party error type to its caller.
package apierrors

import (
	"fmt"
	"net/http"
)

// Kind is one of the stable error categories in spec §7.
type Kind string

const (
	KindMissingInput       Kind = "missing_input"
	KindBadRequest         Kind = "bad_request"
	KindResourceNotFound   Kind = "resource_not_found"
	KindPatchConflict      Kind = "patch_conflict"
	KindValidationFailure  Kind = "validation_failure"
	KindInternal           Kind = "internal"
)

// httpStatus is the Kind -> HTTP status mapping from spec §7.
var httpStatus = map[Kind]int{
	KindMissingInput:      http.StatusBadRequest,
	KindBadRequest:        http.StatusBadRequest,
	KindResourceNotFound:  http.StatusNotFound,
	KindPatchConflict:     http.StatusConflict,
	KindValidationFailure: http.StatusUnprocessableEntity,
	KindInternal:          http.StatusInternalServerError,
}

// Problem is an RFC 7807 problem detail. It satisfies the error interface
// so it can be returned and wrapped like any other Go error, and carries
// enough information for internal/httpapi to render application/problem+json.
type Problem struct {
	Kind     Kind   `json:"-"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Status   int    `json:"status"`
	Instance string `json:"instance,omitempty"`
	cause    error
}

func (p *Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

func (p *Problem) Unwrap() error { return p.cause }

// Type returns the RFC 7807 "type" URI member. IMS doesn't publish a
// documentation site for these, so a stable urn identifies the kind.
func (p *Problem) Type() string { return "urn:ims:error:" + string(p.Kind) }

// New builds a Problem of the given kind with a human-readable detail
// message, mapping the kind to its fixed HTTP status per §7.
func New(kind Kind, detail string) *Problem {
	return &Problem{
		Kind:   kind,
		Title:  string(kind),
		Detail: detail,
		Status: httpStatus[kind],
	}
}

// Newf is New with fmt.Sprintf-style formatting of detail.
func Newf(kind Kind, format string, args ...any) *Problem {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap annotates an underlying error as the given Kind, preserving it for
// Unwrap/errors.Is/As while presenting a stable detail to API clients.
func Wrap(kind Kind, detail string, cause error) *Problem {
	p := New(kind, detail)
	p.cause = cause
	return p
}

// As extracts a *Problem from err if present in its chain.
func As(err error) (*Problem, bool) {
	var p *Problem
	ok := asProblem(err, &p)
	return p, ok
}

func asProblem(err error, target **Problem) bool {
	for err != nil {
		if p, ok := err.(*Problem); ok {
			*target = p
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
