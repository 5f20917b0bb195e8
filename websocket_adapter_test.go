package auth_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	auth "github.com/tiendly/go-auth"
)

func TestWSTokenValidator(t *testing.T) {
	tokens := auth.NewTokenService([]byte("ws-key"), 1, "tiendly", jwt.ClaimStrings{"tiendly-app"}, nil)
	validator := auth.NewWSTokenValidator(tokens)

	t.Run("valid token yields adapted claims", func(t *testing.T) {
		session := &auth.TrustedSession{
			UserID:  "acct-1",
			Role:    auth.RoleAdmin,
			StoreID: "store-7",
		}
		token, err := tokens.Generate(session)
		require.NoError(t, err)

		claims, err := validator.Validate(token)
		require.NoError(t, err)

		adapter, ok := claims.(*auth.WSAuthClaimsAdapter)
		require.True(t, ok)
		require.Equal(t, "acct-1", adapter.UserID())
		require.Equal(t, string(auth.RoleAdmin), adapter.Role())
		require.Equal(t, "store-7", adapter.StoreID())
		require.True(t, adapter.CanEdit("catalog"))
		require.False(t, adapter.CanDelete("store"))
		require.True(t, adapter.IsAtLeast(string(auth.RoleEmployee)))
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		claims, err := validator.Validate("not-a-token")
		require.Error(t, err)
		require.Nil(t, claims)
	})
}
