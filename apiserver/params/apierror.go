// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params

import (
	"fmt"

	"github.com/juju/errors"

	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	tokenerrors "github.com/poolferry/poolferry/domain/token/errors"
)

// Error is the type of error returned by any call to the API.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Message
}

// ErrorCode returns the error's code.
func (e Error) ErrorCode() string {
	return e.Code
}

// GoString implements fmt.GoStringer. It means that a *Error shows
// its contents correctly when printed with %#v.
func (e Error) GoString() string {
	return fmt.Sprintf("&params.Error{Message: %q, Code: %q}", e.Message, e.Code)
}

// The Code constants hold error codes for well known errors.
const (
	CodeNotFound          = "not found"
	CodeUnauthorized      = "unauthorized access"
	CodeNotValid          = "not valid"
	CodeAlreadyExists     = "already exists"
	CodeNotPending        = "not pending"
	CodeInsufficientFunds = "insufficient funds"
	CodeBadRequest        = "bad request"
)

// ErrCode returns the error code associated with the given error, or
// the empty string if there is none.
func ErrCode(err error) string {
	type ErrorCoder interface {
		ErrorCode() string
	}
	switch err := errors.Cause(err).(type) {
	case ErrorCoder:
		return err.ErrorCode()
	default:
		return ""
	}
}

func IsCodeNotFound(err error) bool {
	return ErrCode(err) == CodeNotFound
}

func IsCodeUnauthorized(err error) bool {
	return ErrCode(err) == CodeUnauthorized
}

func IsCodeNotValid(err error) bool {
	return ErrCode(err) == CodeNotValid
}

func IsCodeAlreadyExists(err error) bool {
	return ErrCode(err) == CodeAlreadyExists
}

func IsCodeNotPending(err error) bool {
	return ErrCode(err) == CodeNotPending
}

func IsCodeInsufficientFunds(err error) bool {
	return ErrCode(err) == CodeInsufficientFunds
}

// TranslateWellKnownError translates the given error into the
// matching juju/errors kind or ledger sentinel, so that errors.Is
// checks work on the client side the same way they do on the server.
func TranslateWellKnownError(err error) error {
	switch ErrCode(err) {
	case CodeNotFound:
		return errors.NewNotFound(nil, err.Error())
	case CodeUnauthorized:
		return errors.NewUnauthorized(nil, err.Error())
	case CodeNotValid:
		return errors.NewNotValid(nil, err.Error())
	case CodeAlreadyExists:
		return errors.NewAlreadyExists(nil, err.Error())
	case CodeBadRequest:
		return errors.NewBadRequest(nil, err.Error())
	case CodeNotPending:
		return errors.WithType(err, ownederrors.NotPendingOwner)
	case CodeInsufficientFunds:
		return errors.WithType(err, tokenerrors.InsufficientFunds)
	}
	return err
}
