// Package civiauth implements the session and account-lifecycle core of a
// resident services portal.
//
// The package owns a single mutable snapshot of (session, identity record,
// profile record) and derives from it exactly one [AccountState] at any
// instant. A [Store] keeps the snapshot current as the identity backend
// pushes session-change events, exposes the user-facing action set
// (signup, email verification, password and OTP login, profile writes,
// logout, refresh), and answers capability checks for the rest of the
// application.
//
// The identity backend itself is a remote collaborator; callers integrate
// it by implementing [Backend]. A redis-backed reference implementation
// lives in the backend subpackage.
package civiauth
