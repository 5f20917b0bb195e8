// Package local implements auth.ProviderClient against in-process state.
// It stands in for the hosted identity provider in development and tests:
// accounts live in memory, bearer tokens are HS256 JWTs signed with a
// local key, and failures surface as the same string-coded errors the
// hosted SDK produces, so the normalization layer upstream sees no
// difference.
package local
