// Package auth synchronizes provider-managed identities with locally
// signed trusted sessions and drives the multi-step store registration
// workflow.
//
// Identity boundary:
//   - Client wraps a ProviderClient (the identity-provider SDK) and is
//     the only layer that touches it. Provider errors arrive as opaque
//     string codes and are normalized here into a closed taxonomy, so
//     nothing downstream ever branches on provider strings.
//   - OnIdentityChange fans identity transitions out to listeners in
//     registration order, exactly once per transition. Token refreshes
//     for the same identity are not transitions and produce no event.
//
// Trusted sessions:
//   - SessionBroker exchanges a short-lived provider bearer token for a
//     locally signed session artifact carried in an http-only cookie.
//     Session reads are local verification only and fail closed: any
//     invalid, expired, or missing artifact reads as signed-out.
//   - IdentityChangeWatcher keeps the trusted session aligned with the
//     provider identity and invalidates registered caches whenever the
//     signed-in identity changes.
//
// Registration:
//   - Registration is a small state machine (collecting-identity,
//     collecting-store, provisioning, complete, abandoned) that accepts
//     one submission at a time per draft. Provisioning orders its side
//     effects so the irreversible provider sign-up happens first and a
//     slug conflict returns the draft to store collection; a session
//     sync failure degrades the result instead of failing it.
//   - SlugChecker gives advisory slug availability with debounce and
//     stale-result suppression; the conditional insert performed by the
//     Stores repository remains the authoritative uniqueness decision.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Client, the
//     broker, and the registration workflow. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue
//     without blocking authentication.
package auth
