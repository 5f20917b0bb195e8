package auth

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// JWKSConfig configures bearer-token verification against the identity
// provider's published key set.
type JWKSConfig struct {
	// JWKSURL is the provider's key-set endpoint.
	JWKSURL string

	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience []string

	// RefreshInterval controls background key refresh (default 1h).
	RefreshInterval time.Duration

	Logger Logger
}

// JWKSValidator verifies provider-issued bearer tokens using a cached
// JWKS and maps their claims into StoreClaims. It is the default bearer
// validator for SessionBroker.CreateSession.
type JWKSValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience []string
	logger   Logger
}

var _ TokenValidator = (*JWKSValidator)(nil)

// NewJWKSValidator fetches the provider key set and returns a validator.
func NewJWKSValidator(cfg JWKSConfig) (*JWKSValidator, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required", errors.CategoryBadInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	refreshInterval := cfg.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:   refreshInterval,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh error", "error", err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to fetch provider key set")
	}

	return &JWKSValidator{
		jwks:     jwks,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

// Validate implements TokenValidator for provider bearer tokens.
func (v *JWKSValidator) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithValidMethods([]string{"RS256"}))
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}
	if len(v.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &StoreClaims{}, v.jwks.Keyfunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}
		return nil, errors.Wrap(err, ErrTokenVerification.Category, ErrTokenVerification.Message).
			WithTextCode(ErrTokenVerification.TextCode)
	}

	claims, ok := token.Claims.(*StoreClaims)
	if !ok || !token.Valid {
		v.logger.Error("jwks validator could not decode claims")
		return nil, ErrUnableToDecodeSession
	}

	return claims, nil
}

// Close stops the background key refresh.
func (v *JWKSValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
