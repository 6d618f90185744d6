// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/poolferry/poolferry/apiserver/params"
	convertererrors "github.com/poolferry/poolferry/domain/converter/errors"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	registryerrors "github.com/poolferry/poolferry/domain/registry/errors"
	tokenerrors "github.com/poolferry/poolferry/domain/token/errors"
)

// ServerError returns an error suitable for returning to an API
// client, with an error code suitable for various kinds of errors.
func ServerError(err error) *params.Error {
	if err == nil {
		return nil
	}
	logger.Tracef("server error: %v", err)

	var code string
	switch {
	case errors.Is(err, ownederrors.NotOwner), errors.Is(err, errors.Unauthorized):
		code = params.CodeUnauthorized
	case errors.Is(err, ownederrors.NotPendingOwner):
		code = params.CodeNotPending
	case errors.Is(err, tokenerrors.InsufficientFunds):
		code = params.CodeInsufficientFunds
	case errors.Is(err, ownederrors.EntityNotFound),
		errors.Is(err, tokenerrors.TokenNotFound),
		errors.Is(err, convertererrors.ConverterNotFound),
		errors.Is(err, convertererrors.ReserveNotFound),
		errors.Is(err, registryerrors.NameNotFound),
		errors.Is(err, errors.NotFound):
		code = params.CodeNotFound
	case errors.Is(err, errors.NotValid):
		code = params.CodeNotValid
	case errors.Is(err, errors.AlreadyExists):
		code = params.CodeAlreadyExists
	case errors.Is(err, errors.BadRequest):
		code = params.CodeBadRequest
	}

	return &params.Error{
		Message: err.Error(),
		Code:    code,
	}
}

// statusFor maps an error code to the HTTP status the response is
// sent with. Unmapped codes are internal failures.
func statusFor(code string) int {
	switch code {
	case params.CodeNotFound:
		return http.StatusNotFound
	case params.CodeUnauthorized:
		return http.StatusUnauthorized
	case params.CodeNotValid, params.CodeNotPending,
		params.CodeInsufficientFunds, params.CodeAlreadyExists,
		params.CodeBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
