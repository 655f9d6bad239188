// Package apperr defines the error kinds returned by the service layer.
//
// Domain failures carry a stable Kind and a message safe to show to callers.
// Store failures are wrapped with Internal so the cause is kept for logging
// but never becomes the contract message.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidArgument       Kind = "INVALID_ARGUMENT"
	KindConflict              Kind = "CONFLICT"
	KindInvalidCredentials    Kind = "INVALID_CREDENTIALS"
	KindUnauthenticated       Kind = "UNAUTHENTICATED"
	KindForbidden             Kind = "FORBIDDEN"
	KindNotFound              Kind = "NOT_FOUND"
	KindInvalidOrExpiredToken Kind = "INVALID_OR_EXPIRED_TOKEN"
	KindInternal              Kind = "INTERNAL"
)

const internalMessage = "internal server error"

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 只比较 Kind，便于 errors.Is(err, apperr.ErrNotFound) 这样的判断
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(msg string) *Error { return New(KindInvalidArgument, msg) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }

// Internal 包装存储层/基础设施错误；cause 为 nil 时返回 nil
func Internal(cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Kind: KindInternal, Message: internalMessage, Err: cause}
}

// Kind 哨兵，仅用于 errors.Is 比较
var (
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken}
	ErrInternal              = &Error{Kind: KindInternal}
)

// KindOf 返回错误链上第一个 *Error 的 Kind，未知错误视为 Internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 返回可以直接返回给调用方的信息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return internalMessage
}
