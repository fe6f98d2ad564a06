package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sushihentaime/postboard/internal/blogservice"
	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/userservice"
)

// Error kinds carried in the "kind" field of every error body.
const (
	kindValidation         = "validation_error"
	kindUnauthenticated    = "unauthenticated"
	kindForbidden          = "forbidden"
	kindNotFound           = "not_found"
	kindAlreadyLiked       = "already_liked"
	kindMethodNotAllowed   = "method_not_allowed"
	kindRateLimited        = "rate_limited"
	kindStorageUnavailable = "storage_unavailable"
	kindUpstreamTimeout    = "upstream_timeout"
	kindInternal           = "internal_error"
)

func (app *application) logError(r *http.Request, err error) {
	var (
		method  = r.Method
		url     = r.URL.RequestURI()
		message = err.Error()
	)

	app.logger.Error(message, slog.String("method", method), slog.String("url", url))
}

func (app *application) writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, kind string, message any) {
	err := app.writeJSON(w, status, envelope{"error": message, "kind": kind}, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	message := "the server encountered a problem and could not process your request"
	app.writeErrorResponse(w, r, http.StatusInternalServerError, kindInternal, message)
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.writeErrorResponse(w, r, http.StatusBadRequest, kindValidation, err.Error())
}

func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	app.writeErrorResponse(w, r, http.StatusBadRequest, kindValidation, errors)
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.writeErrorResponse(w, r, http.StatusNotFound, kindNotFound, "the requested resource could not be found")
}

func (app *application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	app.writeErrorResponse(w, r, http.StatusMethodNotAllowed, kindMethodNotAllowed, message)
}

func (app *application) invalidCredentialsResponse(w http.ResponseWriter, r *http.Request) {
	app.writeErrorResponse(w, r, http.StatusUnauthorized, kindUnauthenticated, "invalid authentication credentials")
}

func (app *application) invalidAuthenticationTokenResponse(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")

	message := "invalid or missing authentication token"
	switch {
	case errors.Is(err, userservice.ErrExpiredToken):
		message = "authentication token has expired"
	case errors.Is(err, userservice.ErrPrincipalNotFound):
		message = "authentication token refers to an unknown user"
	}

	app.writeErrorResponse(w, r, http.StatusUnauthorized, kindUnauthenticated, message)
}

func (app *application) authenticationRequiredResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.writeErrorResponse(w, r, http.StatusUnauthorized, kindUnauthenticated, "you must be authenticated to access this resource")
}

// forbiddenResponse uses status because an update and a delete by a
// non-owner are answered with different codes.
func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request, status int, err error) {
	app.writeErrorResponse(w, r, status, kindForbidden, err.Error())
}

func (app *application) alreadyLikedResponse(w http.ResponseWriter, r *http.Request) {
	app.writeErrorResponse(w, r, http.StatusBadRequest, kindAlreadyLiked, "blog already liked")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	app.writeErrorResponse(w, r, http.StatusTooManyRequests, kindRateLimited, "rate limit exceeded")
}

func (app *application) storageUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.writeErrorResponse(w, r, http.StatusBadGateway, kindStorageUnavailable, "the storage backend is unavailable, please try again later")
}

func (app *application) upstreamTimeoutResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.writeErrorResponse(w, r, http.StatusGatewayTimeout, kindUpstreamTimeout, "an upstream service timed out, please try again later")
}

// serviceErrorResponse maps an error returned by a service onto a response.
// forbiddenStatus is the code used when the caller is not allowed to act.
func (app *application) serviceErrorResponse(w http.ResponseWriter, r *http.Request, err error, forbiddenStatus int) {
	var validationErr common.ValidationError

	switch {
	case errors.As(err, &validationErr):
		app.failedValidationResponse(w, r, validationErr.Errors)
	case errors.Is(err, blogservice.ErrAuthorImmutable):
		app.failedValidationResponse(w, r, map[string]string{"author": "cannot be changed"})
	case errors.Is(err, common.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, common.ErrForbidden):
		app.forbiddenResponse(w, r, forbiddenStatus, err)
	case errors.Is(err, userservice.ErrPrincipalNotFound):
		app.invalidAuthenticationTokenResponse(w, r, err)
	case errors.Is(err, common.ErrUnauthenticated):
		app.authenticationRequiredResponse(w, r)
	case errors.Is(err, common.ErrAlreadyLiked):
		app.alreadyLikedResponse(w, r)
	case errors.Is(err, common.ErrUpstreamTimeout):
		app.upstreamTimeoutResponse(w, r, err)
	case errors.Is(err, common.ErrStorageUnavailable):
		app.storageUnavailableResponse(w, r, err)
	default:
		app.serverErrorResponse(w, r, err)
	}
}
