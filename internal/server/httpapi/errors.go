package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/gin-gonic/gin"
)

// Client-facing messages. They never say which part of a credential was wrong.
const (
	msgMethodNotAllowed    = "Method not allowed."
	msgNotFound            = "Not found."
	msgBadRequest          = "Request body is invalid."
	msgInternal            = "Internal error occurred (no fault of the client)."
	msgInvalidEmail        = "Email is invalid."
	msgInvalidUsername     = "Username is invalid."
	msgInvalidPassword     = "Password is invalid."
	msgDuplicateEmail      = "User with that email already exists."
	msgDuplicateUsername   = "User with that username already exists."
	msgBadCredentials      = "Invalid username or password."
	msgUnauthorizedRefresh = "Token sent could not authorize an access refresh."
	msgUnauthorizedAccess  = "Token sent could not authorize the request."
	msgTooManyRequests     = "Too many requests."
	msgAuthDisabled        = "Authentication is disabled."
)

type errorResponse struct {
	Error string `json:"error"`
}

func abortWith(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// signUpError maps a sign-up failure to a status and message.
func signUpError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidEmail):
		return http.StatusBadRequest, msgInvalidEmail
	case errors.Is(err, common.ErrInvalidUsername):
		return http.StatusBadRequest, msgInvalidUsername
	case errors.Is(err, common.ErrInvalidPassword):
		return http.StatusBadRequest, msgInvalidPassword
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict, msgDuplicateEmail
	case errors.Is(err, common.ErrDuplicateUsername):
		return http.StatusConflict, msgDuplicateUsername
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// authError maps sign-in and token failures. Every unauthorized cause
// collapses to the one message given.
func authError(err error, unauthorized string) (int, string) {
	if common.Kind(err) == common.KindUnauthorized {
		return http.StatusUnauthorized, unauthorized
	}
	return http.StatusInternalServerError, msgInternal
}
