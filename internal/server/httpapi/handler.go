package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/gophreview/internal/logging"
	"github.com/dmitrijs2005/gophreview/internal/server/auth"
	"github.com/dmitrijs2005/gophreview/internal/server/metrics"
	"github.com/dmitrijs2005/gophreview/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophreview/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Sessions is the part of services.SessionService the routes need.
type Sessions interface {
	SignUp(ctx context.Context, email, username, password string) (*services.Tokens, error)
	SignIn(ctx context.Context, email, password string) (*services.Tokens, error)
	RefreshAccess(ctx context.Context, refreshToken string) (string, error)
	VerifyAccess(token string) (*auth.Claims, error)
	ProfileByID(ctx context.Context, userID string) (*services.Profile, error)
}

// Options configures the router. A nil Sessions means the signing keys
// could not be loaded: every /api route then answers 503.
type Options struct {
	Sessions    Sessions
	Logger      logging.Logger
	Limiter     ratelimit.Limiter
	Metrics     *metrics.Metrics
	MetricsPath string
	// Ready reports whether the credential store is reachable.
	Ready func(ctx context.Context) error
}

type handler struct {
	sessions Sessions
	logger   logging.Logger
}

type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(o Options) *gin.Engine {
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Limiter == nil {
		o.Limiter = ratelimit.Unlimited{}
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	_ = r.SetTrustedProxies(nil)

	r.Use(RequestID(), Recovery(o.Logger), Logger(o.Logger, o.Metrics))
	r.NoMethod(func(c *gin.Context) { abortWith(c, http.StatusMethodNotAllowed, msgMethodNotAllowed) })
	r.NoRoute(func(c *gin.Context) { abortWith(c, http.StatusNotFound, msgNotFound) })

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", readiness(o))
	if o.Metrics != nil && o.MetricsPath != "" {
		r.GET(o.MetricsPath, gin.WrapH(o.Metrics.Handler()))
	}

	h := &handler{sessions: o.Sessions, logger: o.Logger.With("module", "httpapi")}
	api := r.Group("/api", h.requireEnabled)

	throttle := RateLimit(o.Limiter, o.Logger)
	api.POST("/signUp", throttle, h.signUp)
	api.POST("/signIn", throttle, h.signIn)
	api.POST("/refreshAccess", h.refreshAccess)
	api.POST("/getMyInfo", h.requireAccess, h.getMyInfo)

	return r
}

func readiness(o Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if o.Sessions == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "auth disabled"})
			return
		}
		if o.Ready != nil {
			if err := o.Ready(c.Request.Context()); err != nil {
				o.Logger.Warn(c.Request.Context(), "readiness check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "store unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func (h *handler) requireEnabled(c *gin.Context) {
	if h.sessions == nil {
		abortWith(c, http.StatusServiceUnavailable, msgAuthDisabled)
		return
	}
	c.Next()
}

func (h *handler) requireAccess(c *gin.Context) {
	RequireAccess(h.sessions)(c)
}

func (h *handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, msgBadRequest)
		return
	}

	tokens, err := h.sessions.SignUp(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		status, msg := signUpError(err)
		h.fail(c, status, msg, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, msgBadRequest)
		return
	}

	tokens, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status, msg := authError(err, msgBadCredentials)
		h.fail(c, status, msg, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *handler) refreshAccess(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	if req.RefreshToken == "" {
		abortWith(c, http.StatusUnauthorized, msgUnauthorizedRefresh)
		return
	}

	access, err := h.sessions.RefreshAccess(c.Request.Context(), req.RefreshToken)
	if err != nil {
		status, msg := authError(err, msgUnauthorizedRefresh)
		h.fail(c, status, msg, err)
		return
	}
	c.JSON(http.StatusOK, accessTokenResponse{AccessToken: access})
}

func (h *handler) getMyInfo(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		abortWith(c, http.StatusUnauthorized, msgUnauthorizedAccess)
		return
	}

	profile, err := h.sessions.ProfileByID(c.Request.Context(), claims.UserID)
	if err != nil {
		status, msg := authError(err, msgUnauthorizedAccess)
		h.fail(c, status, msg, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// fail answers with msg. Server-side failures are logged; client errors are not.
func (h *handler) fail(c *gin.Context, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed",
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
	}
	abortWith(c, status, msg)
}
