package auth

import "context"

// ClaimsDecorator can enrich the trusted session before the cookie
// artifact is signed, e.g. stamping a plan tier or locale into Data.
// Implementations may only touch Data; identity claims (user, role,
// store, expiry) are snapshotted and any mutation fails the session
// create with ErrImmutableClaimMutation.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, session *TrustedSession) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, session *TrustedSession) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, session *TrustedSession) error {
	if f == nil {
		return nil
	}
	return f(ctx, session)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *TrustedSession) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}
