package auth

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// SessionContextKey is the router locals key the middleware stores the
// trusted session under.
const SessionContextKey = "session"

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// SessionController exposes the trusted-session exchange over HTTP. The
// client obtains a bearer token from the identity provider and trades it
// here for the http-only session cookie; the token never travels
// anywhere else.
type SessionController struct {
	broker       *SessionBroker
	slugs        *SlugChecker
	logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// SessionControllerOption customizes controller construction.
type SessionControllerOption func(*SessionController)

// NewSessionController creates the HTTP surface for a broker.
func NewSessionController(broker *SessionBroker, opts ...SessionControllerOption) *SessionController {
	_, logger := ResolveLogger("auth.http", nil, nil)

	c := &SessionController{
		broker: broker,
		logger: logger,
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// WithSessionControllerSlugChecker enables the advisory slug endpoint.
func WithSessionControllerSlugChecker(checker *SlugChecker) SessionControllerOption {
	return func(c *SessionController) {
		c.slugs = checker
	}
}

// WithSessionControllerLogger overrides the controller logger.
func WithSessionControllerLogger(logger Logger) SessionControllerOption {
	return func(c *SessionController) {
		_, c.logger = ResolveLogger("auth.http", nil, logger)
	}
}

// RegisterRoutes mounts the session endpoints on the given group,
// typically under "/auth".
func (c *SessionController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/session", c.SyncSession)
	group.Delete("/session", c.ClearSession)
	group.Get("/session", c.ShowSession)

	if c.slugs != nil {
		group.Get("/slug-availability", c.SlugAvailability)
	}
}

// SyncSessionPayload carries the provider bearer token.
type SyncSessionPayload struct {
	Token string `json:"token"`
}

// SyncSession exchanges a bearer token for the session cookie.
func (c *SessionController) SyncSession(ctx router.Context) error {
	payload := SyncSessionPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid session payload").
			WithCode(goerrors.CodeBadRequest))
	}

	session, err := c.broker.CreateSession(ctx, payload.Token)
	if err != nil {
		c.logger.Warn("session sync rejected", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user_id":  session.UserID,
		"role":     session.Role,
		"store_id": session.StoreID,
	})
}

// ClearSession drops the session cookie. Always succeeds.
func (c *SessionController) ClearSession(ctx router.Context) error {
	c.broker.DestroySession(ctx)
	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "signed_out",
	})
}

// ShowSession reports the current trusted session, or signed_in=false
// when the artifact is missing or fails verification.
func (c *SessionController) ShowSession(ctx router.Context) error {
	session := c.broker.CurrentSession(ctx)
	if session == nil {
		return ctx.JSON(router.StatusOK, map[string]any{
			"signed_in": false,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"signed_in": true,
		"user_id":   session.UserID,
		"role":      session.Role,
		"store_id":  session.StoreID,
		"expires":   session.ExpiresAt,
	})
}

// SlugAvailability runs a direct advisory check, bypassing the debounce.
// The result is advisory only; creation remains the authority.
func (c *SessionController) SlugAvailability(ctx router.Context) error {
	normalized := NormalizeSlug(ctx.Query("slug"))

	available, err := c.slugs.CheckAvailability(ctx.Context(), normalized)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	response := map[string]any{
		"slug":      normalized,
		"available": available,
	}
	if !available {
		response["suggestions"] = SuggestSlugs(normalized, DefaultSlugSuggestions)
	}

	return ctx.JSON(router.StatusOK, response)
}

func (c *SessionController) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	return ctx.JSON(richErr.Code, map[string]any{
		"error":   UserMessage(richErr),
		"code":    richErr.TextCode,
		"message": richErr.Message,
	})
}

// RequireSession rejects requests without a valid trusted session. The
// session is exposed through ctx.Locals(SessionContextKey) and the
// request context.
func RequireSession(broker *SessionBroker, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session := broker.CurrentSession(ctx)
			if session == nil {
				err := goerrors.New("authentication required", goerrors.CategoryAuth).
					WithCode(goerrors.CodeUnauthorized)
				if errorHandler != nil {
					return errorHandler(ctx, err)
				}
				return ctx.JSON(router.StatusUnauthorized, map[string]string{
					"error": UserMessage(err),
				})
			}

			ctx.Locals(SessionContextKey, session)
			ctx.SetContext(WithSessionContext(ctx.Context(), session))
			return hf(ctx)
		}
	}
}

// OptionalSession is RequireSession without the rejection: a missing or
// invalid session simply leaves the request anonymous.
func OptionalSession(broker *SessionBroker) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if session := broker.CurrentSession(ctx); session != nil {
				ctx.Locals(SessionContextKey, session)
				ctx.SetContext(WithSessionContext(ctx.Context(), session))
			}
			return hf(ctx)
		}
	}
}

// RequireRole gates a route on the role hierarchy: owner > admin >
// employee > guest. Unknown roles fail the gate.
func RequireRole(role UserRole, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, _ := ctx.Locals(SessionContextKey).(*TrustedSession)
			if session == nil || !session.IsAtLeast(role) {
				err := goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
					WithCode(goerrors.CodeForbidden)
				if errorHandler != nil {
					return errorHandler(ctx, err)
				}
				return ctx.JSON(router.StatusForbidden, map[string]string{
					"error": UserMessage(err),
				})
			}
			return hf(ctx)
		}
	}
}

// SessionFromLocals recovers the trusted session stored by the
// middleware, or nil when the request is anonymous.
func SessionFromLocals(ctx router.Context) *TrustedSession {
	session, _ := ctx.Locals(SessionContextKey).(*TrustedSession)
	return session
}
