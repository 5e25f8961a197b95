package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookclub/backend/internal/repository"
)

type ErrorKind int

const (
	KindUnauthenticated ErrorKind = iota + 1
	KindUnauthorized
	KindGroupNotFound
	KindMembershipNotFound
	KindRequestNotFound
	KindBadAction
	KindPageSizeTooSmall
	KindPageSizeTooLarge
	KindExpiredCredential
	KindTransient
)

var kindNames = map[ErrorKind]string{
	KindUnauthenticated:    "unauthenticated",
	KindUnauthorized:       "unauthorized",
	KindGroupNotFound:      "group_not_found",
	KindMembershipNotFound: "membership_not_found",
	KindRequestNotFound:    "request_not_found",
	KindBadAction:          "bad_action",
	KindPageSizeTooSmall:   "page_size_too_small",
	KindPageSizeTooLarge:   "page_size_too_large",
	KindExpiredCredential:  "expired_credential",
	KindTransient:          "transient",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var defaultMessages = map[ErrorKind]string{
	KindUnauthenticated:    "authentication required",
	KindUnauthorized:       "not allowed to perform this action",
	KindGroupNotFound:      "book club not found",
	KindMembershipNotFound: "membership not found",
	KindRequestNotFound:    "membership request not found",
	KindBadAction:          "action not allowed",
	KindPageSizeTooSmall:   "page size must be at least 1",
	KindPageSizeTooLarge:   fmt.Sprintf("page size must be at most %d", MaxPageSize),
	KindExpiredCredential:  "refresh token expired",
	KindTransient:          "service temporarily unavailable, retry later",
}

// Error is the typed result every engine operation fails with. Match kinds
// with errors.Is against the package sentinels.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil && e.Kind == KindTransient {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// PublicMessage is safe to show to untrusted callers.
func (e *Error) PublicMessage() string {
	if e.Kind == KindTransient || e.Message == "" {
		return defaultMessages[e.Kind]
	}
	return e.Message
}

var (
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrGroupNotFound      = &Error{Kind: KindGroupNotFound}
	ErrMembershipNotFound = &Error{Kind: KindMembershipNotFound}
	ErrRequestNotFound    = &Error{Kind: KindRequestNotFound}
	ErrBadAction          = &Error{Kind: KindBadAction}
	ErrPageSizeTooSmall   = &Error{Kind: KindPageSizeTooSmall}
	ErrPageSizeTooLarge   = &Error{Kind: KindPageSizeTooLarge}
	ErrExpiredCredential  = &Error{Kind: KindExpiredCredential}
	ErrTransient          = &Error{Kind: KindTransient}
)

func badAction(message string) error {
	return &Error{Kind: KindBadAction, Message: message}
}

func unauthenticated(message string) error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// KindOf returns the kind carried by err, or zero when err is untyped.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// storageError classifies a repository failure. notFound is returned for
// repository.ErrNotFound; everything else that is not already typed becomes
// a transient failure.
func storageError(err error, notFound error) error {
	var typed *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typed):
		return err
	case errors.Is(err, repository.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindTransient, Message: "concurrent modification, retry", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransient, Message: "storage timed out", Err: err}
	default:
		return &Error{Kind: KindTransient, Err: err}
	}
}
