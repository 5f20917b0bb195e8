package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	auth "github.com/tiendly/go-auth"
)

type recordingRegistrar struct {
	routes map[string][]string
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{routes: map[string][]string{}}
}

func (r *recordingRegistrar) add(method, path string) router.RouteInfo {
	r.routes[method] = append(r.routes[method], path)
	return nil
}

func (r *recordingRegistrar) Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.add("GET", path)
}

func (r *recordingRegistrar) Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.add("POST", path)
}

func (r *recordingRegistrar) Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.add("DELETE", path)
}

func TestSessionController_RegisterRoutes(t *testing.T) {
	t.Run("mounts the session endpoints", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)
		controller := auth.NewSessionController(broker)

		registrar := newRecordingRegistrar()
		controller.RegisterRoutes(registrar)

		assert.Equal(t, []string{"/session"}, registrar.routes["POST"])
		assert.Equal(t, []string{"/session"}, registrar.routes["DELETE"])
		assert.Equal(t, []string{"/session"}, registrar.routes["GET"])
	})

	t.Run("exposes slug availability only when a checker is wired", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)
		checker := auth.NewSlugChecker(newMemorySlugFinder())
		defer checker.Stop()

		controller := auth.NewSessionController(broker, auth.WithSessionControllerSlugChecker(checker))

		registrar := newRecordingRegistrar()
		controller.RegisterRoutes(registrar)

		assert.Contains(t, registrar.routes["GET"], "/slug-availability")
	})
}

func TestSessionController_SyncSession(t *testing.T) {
	t.Run("trades the bearer token for the session cookie", func(t *testing.T) {
		broker, _, bearer := newBrokerFixture(t)
		controller := auth.NewSessionController(broker)

		bearer.On("Validate", "bearer-token").Return(&auth.StoreClaims{
			UID:      "user-1",
			UserRole: auth.RoleOwner,
			Store:    "store-7",
		}, nil)

		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.SyncSessionPayload)
			payload.Token = "bearer-token"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("Cookie", mock.Anything)
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		err := controller.SyncSession(ctx)

		assert.NoError(t, err)
		assert.Equal(t, "user-1", body["user_id"])
		assert.Equal(t, auth.RoleOwner, body["role"])
		assert.Equal(t, "store-7", body["store_id"])
		ctx.AssertCalled(t, "Cookie", mock.Anything)
	})

	t.Run("rejects an unreadable payload", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)
		controller := auth.NewSessionController(broker)

		var code int
		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Bind", mock.Anything).Return(assert.AnError)
		ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			code = args.Get(0).(int)
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		err := controller.SyncSession(ctx)

		assert.NoError(t, err)
		assert.Equal(t, router.StatusBadRequest, code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("surfaces a safe message for an invalid bearer", func(t *testing.T) {
		broker, _, bearer := newBrokerFixture(t)
		controller := auth.NewSessionController(broker)

		bearer.On("Validate", "garbage").Return(nil, auth.ErrTokenMalformed)

		var code int
		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			args.Get(0).(*auth.SyncSessionPayload).Token = "garbage"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			code = args.Get(0).(int)
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		err := controller.SyncSession(ctx)

		assert.NoError(t, err)
		assert.Equal(t, router.StatusUnauthorized, code)
		assert.Equal(t, "TOKEN_MALFORMED", body["code"])
		assert.Equal(t, auth.UserMessage(auth.ErrTokenMalformed), body["error"])
	})
}

func TestSessionController_ClearSession(t *testing.T) {
	broker, _, _ := newBrokerFixture(t)
	controller := auth.NewSessionController(broker)

	var written *router.Cookie
	var body map[string]string
	ctx := &MockContext{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(0).(*router.Cookie)
	})
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]string)
	}).Return(nil)

	err := controller.ClearSession(ctx)

	assert.NoError(t, err)
	assert.Equal(t, "signed_out", body["status"])
	assert.NotNil(t, written)
	assert.Empty(t, written.Value)
	assert.True(t, written.Expires.Before(time.Now()))
}

func TestSessionController_ShowSession(t *testing.T) {
	t.Run("reports the current session", func(t *testing.T) {
		broker, tokens, _ := newBrokerFixture(t)
		controller := auth.NewSessionController(broker)

		artifact, err := tokens.Generate(&auth.TrustedSession{
			UserID:  "user-1",
			Role:    auth.RoleAdmin,
			StoreID: "store-7",
		})
		assert.NoError(t, err)

		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return(artifact)
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		assert.NoError(t, controller.ShowSession(ctx))
		assert.Equal(t, true, body["signed_in"])
		assert.Equal(t, "user-1", body["user_id"])
		assert.Equal(t, auth.RoleAdmin, body["role"])
		assert.Equal(t, "store-7", body["store_id"])
	})

	t.Run("missing session reads as signed out", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)
		controller := auth.NewSessionController(broker)

		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return("")
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		assert.NoError(t, controller.ShowSession(ctx))
		assert.Equal(t, false, body["signed_in"])
	})
}

func TestSessionController_SlugAvailability(t *testing.T) {
	t.Run("normalizes and reports availability", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)
		checker := auth.NewSlugChecker(newMemorySlugFinder())
		defer checker.Stop()

		controller := auth.NewSessionController(broker, auth.WithSessionControllerSlugChecker(checker))

		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Query", "slug").Return("Café Sol")
		ctx.On("Context").Return(context.Background())
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		assert.NoError(t, controller.SlugAvailability(ctx))
		assert.Equal(t, "cafe-sol", body["slug"])
		assert.Equal(t, true, body["available"])
		assert.NotContains(t, body, "suggestions")
	})

	t.Run("taken slug carries suggestions", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)
		checker := auth.NewSlugChecker(newMemorySlugFinder("cafe-sol"))
		defer checker.Stop()

		controller := auth.NewSessionController(broker, auth.WithSessionControllerSlugChecker(checker))

		var body map[string]any
		ctx := &MockContext{}
		ctx.On("Query", "slug").Return("cafe-sol")
		ctx.On("Context").Return(context.Background())
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		assert.NoError(t, controller.SlugAvailability(ctx))
		assert.Equal(t, false, body["available"])
		assert.NotEmpty(t, body["suggestions"])
	})
}

func TestRequireSession(t *testing.T) {
	t.Run("rejects anonymous requests", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)

		var code int
		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return("")
		ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			code = args.Get(0).(int)
		}).Return(nil)

		called := false
		handler := auth.RequireSession(broker, nil)(func(c router.Context) error {
			called = true
			return nil
		})

		assert.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, router.StatusUnauthorized, code)
	})

	t.Run("exposes the session to downstream handlers", func(t *testing.T) {
		broker, tokens, _ := newBrokerFixture(t)

		artifact, err := tokens.Generate(&auth.TrustedSession{
			UserID: "user-1",
			Role:   auth.RoleOwner,
		})
		assert.NoError(t, err)

		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return(artifact)
		ctx.On("Context").Return(context.Background())
		ctx.On("Locals", auth.SessionContextKey, mock.Anything)
		ctx.On("SetContext", mock.Anything)

		called := false
		handler := auth.RequireSession(broker, nil)(func(c router.Context) error {
			called = true
			return nil
		})

		assert.NoError(t, handler(ctx))
		assert.True(t, called)
		ctx.AssertCalled(t, "Locals", auth.SessionContextKey, mock.MatchedBy(func(s *auth.TrustedSession) bool {
			return s.UserID == "user-1" && s.Role == auth.RoleOwner
		}))
		ctx.AssertCalled(t, "SetContext", mock.MatchedBy(func(c context.Context) bool {
			session, ok := auth.SessionFromContext(c)
			return ok && session.UserID == "user-1"
		}))
	})

	t.Run("uses the custom error handler", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)

		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return("")

		var seen error
		handler := auth.RequireSession(broker, func(c router.Context, err error) error {
			seen = err
			return nil
		})(func(c router.Context) error { return nil })

		assert.NoError(t, handler(ctx))
		assert.Error(t, seen)
	})
}

func TestOptionalSession(t *testing.T) {
	t.Run("anonymous requests pass through untouched", func(t *testing.T) {
		broker, _, _ := newBrokerFixture(t)

		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return("")

		called := false
		handler := auth.OptionalSession(broker)(func(c router.Context) error {
			called = true
			return nil
		})

		assert.NoError(t, handler(ctx))
		assert.True(t, called)
		ctx.AssertNotCalled(t, "Locals", mock.Anything, mock.Anything)
	})

	t.Run("valid sessions are attached", func(t *testing.T) {
		broker, tokens, _ := newBrokerFixture(t)

		artifact, err := tokens.Generate(&auth.TrustedSession{UserID: "user-1"})
		assert.NoError(t, err)

		ctx := &MockContext{}
		ctx.On("Cookies", "session").Return(artifact)
		ctx.On("Context").Return(context.Background())
		ctx.On("Locals", auth.SessionContextKey, mock.Anything)
		ctx.On("SetContext", mock.Anything)

		handler := auth.OptionalSession(broker)(func(c router.Context) error { return nil })

		assert.NoError(t, handler(ctx))
		ctx.AssertCalled(t, "Locals", auth.SessionContextKey, mock.Anything)
	})
}

func TestRequireRole(t *testing.T) {
	run := func(t *testing.T, session *auth.TrustedSession, minRole auth.UserRole) (handlerCalled bool, code int) {
		t.Helper()

		ctx := &MockContext{}
		if session == nil {
			ctx.On("Locals", auth.SessionContextKey).Return(nil)
		} else {
			ctx.On("Locals", auth.SessionContextKey).Return(session)
		}
		ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			code = args.Get(0).(int)
		}).Return(nil)

		handler := auth.RequireRole(minRole, nil)(func(c router.Context) error {
			handlerCalled = true
			return nil
		})
		assert.NoError(t, handler(ctx))
		return handlerCalled, code
	}

	t.Run("allows a role at or above the minimum", func(t *testing.T) {
		called, _ := run(t, &auth.TrustedSession{UserID: "u", Role: auth.RoleOwner}, auth.RoleAdmin)
		assert.True(t, called)

		called, _ = run(t, &auth.TrustedSession{UserID: "u", Role: auth.RoleAdmin}, auth.RoleAdmin)
		assert.True(t, called)
	})

	t.Run("rejects a role below the minimum", func(t *testing.T) {
		called, code := run(t, &auth.TrustedSession{UserID: "u", Role: auth.RoleEmployee}, auth.RoleAdmin)
		assert.False(t, called)
		assert.Equal(t, router.StatusForbidden, code)
	})

	t.Run("rejects unknown roles even at guest level", func(t *testing.T) {
		called, code := run(t, &auth.TrustedSession{UserID: "u", Role: "superuser"}, auth.RoleGuest)
		assert.False(t, called)
		assert.Equal(t, router.StatusForbidden, code)
	})

	t.Run("rejects when no session was attached", func(t *testing.T) {
		called, code := run(t, nil, auth.RoleGuest)
		assert.False(t, called)
		assert.Equal(t, router.StatusForbidden, code)
	})
}

func TestSessionFromLocals(t *testing.T) {
	session := &auth.TrustedSession{UserID: "user-1"}

	ctx := &MockContext{}
	ctx.On("Locals", auth.SessionContextKey).Return(session)
	assert.Equal(t, session, auth.SessionFromLocals(ctx))

	anon := &MockContext{}
	anon.On("Locals", auth.SessionContextKey).Return(nil)
	assert.Nil(t, auth.SessionFromLocals(anon))
}
