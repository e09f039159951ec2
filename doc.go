// Package chemtrack implements the authentication bootstrap and account
// lifecycle for the ChemTrack inventory service.
//
// Bootstrap flow:
//   - Every protected navigation runs the same sequence: session check,
//     bounded profile fetch, then the pure Decide state machine. Nothing is
//     cached between navigations, so role and status edits made server-side
//     apply on the very next request.
//   - Decisions are terminal. A route either renders for an AUTHORIZED
//     profile or redirects; there is no state in which protected content
//     renders while checks are still pending.
//
// Magic links:
//   - One-time codes are stored hashed and claimed with a conditional
//     update, so each link exchanges at most once. An exchange always
//     terminates whatever session was present first, which is how a link for
//     account B signs out account A instead of blending the two.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the
//     authenticator, the exchanger, and the admin commands. Sinks run
//     best-effort (errors are logged) so auditing never blocks a sign-in.
package chemtrack
