package common

const (
	// AuthorizationHeaderName carries "Bearer <access token>" on requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in AuthorizationHeaderName.
	BearerPrefix = "Bearer "

	// RequestIDHeaderName is echoed back on every response.
	RequestIDHeaderName = "X-Request-ID"
)
