package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	auth "github.com/tiendly/go-auth"
)

func TestClient_SignIn(t *testing.T) {
	t.Run("returns the identity on success", func(t *testing.T) {
		sdk := &MockProviderClient{}
		sdk.On("SignIn", mock.Anything, "ana@example.com", "hunter22").
			Return(&auth.ProviderIdentity{ExternalID: "uid-1", EmailAddr: "ana@example.com"}, nil)

		sink := &RecordingActivitySink{}
		client := auth.NewClient(sdk, auth.WithClientActivitySink(sink))
		defer client.Close()

		identity, err := client.SignIn(context.Background(), "ana@example.com", "hunter22")

		assert.NoError(t, err)
		assert.Equal(t, "uid-1", identity.ExternalID)
		assert.Len(t, sink.ByType(auth.ActivityEventLoginSuccess), 1)
		sdk.AssertExpectations(t)
	})

	t.Run("normalizes provider codes into the closed taxonomy", func(t *testing.T) {
		tests := []struct {
			code     string
			expected string
		}{
			{"auth/wrong-password", auth.ErrInvalidCredentials.TextCode},
			{"auth/user-not-found", auth.ErrInvalidCredentials.TextCode},
			{"auth/invalid-credential", auth.ErrInvalidCredentials.TextCode},
			{"auth/too-many-requests", auth.ErrRateLimited.TextCode},
			{"auth/network-request-failed", auth.ErrProviderUnavailable.TextCode},
			{"auth/some-brand-new-code", auth.ErrProviderUnavailable.TextCode},
		}

		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				sdk := &MockProviderClient{}
				sdk.On("SignIn", mock.Anything, "ana@example.com", "bad").
					Return(nil, &auth.ProviderError{Code: tt.code})

				client := auth.NewClient(sdk)
				defer client.Close()

				identity, err := client.SignIn(context.Background(), "ana@example.com", "bad")

				assert.Nil(t, identity)
				var richErr *goerrors.Error
				assert.True(t, goerrors.As(err, &richErr))
				assert.Equal(t, tt.expected, richErr.TextCode)
			})
		}
	})

	t.Run("failure emits a login failure event", func(t *testing.T) {
		sdk := &MockProviderClient{}
		sdk.On("SignIn", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &auth.ProviderError{Code: "auth/wrong-password"})

		sink := &RecordingActivitySink{}
		client := auth.NewClient(sdk, auth.WithClientActivitySink(sink))
		defer client.Close()

		_, err := client.SignIn(context.Background(), "ana@example.com", "bad")

		assert.Error(t, err)
		assert.Len(t, sink.ByType(auth.ActivityEventLoginFailure), 1)
	})
}

func TestClient_SignInWithProvider(t *testing.T) {
	t.Run("returns external result with store claim", func(t *testing.T) {
		sdk := &MockProviderClient{}
		sdk.On("SignInExternal", mock.Anything, true).Return(&auth.ExternalSignIn{
			Identity: &auth.ProviderIdentity{ExternalID: "uid-9"},
			StoreID:  "store-3",
		}, nil)

		client := auth.NewClient(sdk)
		defer client.Close()

		result, err := client.SignInWithProvider(context.Background(), true)

		assert.NoError(t, err)
		assert.Equal(t, "store-3", result.StoreID)
	})

	t.Run("dismissed prompt maps to prompt closed", func(t *testing.T) {
		sdk := &MockProviderClient{}
		sdk.On("SignInExternal", mock.Anything, false).
			Return(nil, &auth.ProviderError{Code: "auth/popup-closed-by-user"})

		client := auth.NewClient(sdk)
		defer client.Close()

		result, err := client.SignInWithProvider(context.Background(), false)

		assert.Nil(t, result)
		var richErr *goerrors.Error
		assert.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, auth.ErrPromptClosed.TextCode, richErr.TextCode)
	})
}

func TestClient_BearerToken(t *testing.T) {
	t.Run("empty token without identity is not an error", func(t *testing.T) {
		sdk := &MockProviderClient{}
		sdk.On("BearerToken", mock.Anything, false).Return("", nil)

		client := auth.NewClient(sdk)
		defer client.Close()

		token, err := client.BearerToken(context.Background(), false)

		assert.NoError(t, err)
		assert.Empty(t, token)
	})
}

func TestClient_OnIdentityChange(t *testing.T) {
	t.Run("listeners fire in registration order", func(t *testing.T) {
		sdk := &MockProviderClient{}
		client := auth.NewClient(sdk)
		defer client.Close()

		var order []string
		client.OnIdentityChange(func(*auth.ProviderIdentity) { order = append(order, "first") })
		client.OnIdentityChange(func(*auth.ProviderIdentity) { order = append(order, "second") })
		client.OnIdentityChange(func(*auth.ProviderIdentity) { order = append(order, "third") })

		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-1"})

		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("token refresh with same identity produces no event", func(t *testing.T) {
		sdk := &MockProviderClient{}
		client := auth.NewClient(sdk)
		defer client.Close()

		calls := 0
		client.OnIdentityChange(func(*auth.ProviderIdentity) { calls++ })

		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-1"})
		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-1"})

		assert.Equal(t, 1, calls)
	})

	t.Run("swap and sign out are distinct transitions", func(t *testing.T) {
		sdk := &MockProviderClient{}
		client := auth.NewClient(sdk)
		defer client.Close()

		var seen []string
		client.OnIdentityChange(func(identity *auth.ProviderIdentity) {
			if identity == nil {
				seen = append(seen, "<nil>")
				return
			}
			seen = append(seen, identity.ExternalID)
		})

		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-a"})
		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-b"})
		sdk.Emit(nil)

		assert.Equal(t, []string{"uid-a", "uid-b", "<nil>"}, seen)
	})

	t.Run("cancel stops delivery", func(t *testing.T) {
		sdk := &MockProviderClient{}
		client := auth.NewClient(sdk)
		defer client.Close()

		calls := 0
		cancel := client.OnIdentityChange(func(*auth.ProviderIdentity) { calls++ })

		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-1"})
		cancel()
		sdk.Emit(&auth.ProviderIdentity{ExternalID: "uid-2"})

		assert.Equal(t, 1, calls)
	})
}
