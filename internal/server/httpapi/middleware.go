package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/logging"
	"github.com/dmitrijs2005/gophreview/internal/server/auth"
	"github.com/dmitrijs2005/gophreview/internal/server/metrics"
	"github.com/dmitrijs2005/gophreview/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	claimsKey    = "auth_claims"
)

// AccessVerifier checks access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(common.RequestIDHeaderName)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Header(common.RequestIDHeaderName, reqID)
		c.Next()
	}
}

// Logger logs one line per request and feeds the HTTP metrics when m is
// not nil.
func Logger(l logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		l.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)

		if m != nil {
			m.ObserveRequest(c.Request.Method, path, status, latency)
		}
	}
}

func Recovery(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				l.Error(c.Request.Context(), "panic",
					"error", err,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDKey),
				)
				abortWith(c, http.StatusInternalServerError, msgInternal)
			}
		}()
		c.Next()
	}
}

// RateLimit throttles by client IP. Limiter failures let the request through.
func RateLimit(lim ratelimit.Limiter, l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + "|" + c.ClientIP()
		allowed, retryAfter, err := lim.Allow(c.Request.Context(), key)
		if err != nil {
			l.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			abortWith(c, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		c.Next()
	}
}

type accessTokenRequest struct {
	AccessToken string `json:"accessToken"`
}

// RequireAccess accepts an access token from the Authorization header or,
// failing that, from an "accessToken" field of the JSON body. The verified
// claims are stored in the gin context.
func RequireAccess(v AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if !ok {
			var req accessTokenRequest
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err == nil {
				token = req.AccessToken
			}
		}
		if token == "" {
			abortWith(c, http.StatusUnauthorized, msgUnauthorizedAccess)
			return
		}

		claims, err := v.VerifyAccess(token)
		if err != nil {
			status, msg := authError(err, msgUnauthorizedAccess)
			abortWith(c, status, msg)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAccess.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(common.BearerPrefix):])
	return token, token != ""
}
