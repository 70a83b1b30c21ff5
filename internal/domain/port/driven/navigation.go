package driven

import "context"

// BannedHandler is notified when the backend reports that the signed-in
// account is banned. The presentation layer navigates to the penalty page.
type BannedHandler interface {
	Banned(ctx context.Context)
}

// SessionExpiredHandler is notified once per unrecoverable authentication
// failure, after the session has been cleared. The presentation layer
// navigates back to the login page.
type SessionExpiredHandler interface {
	SessionExpired(ctx context.Context)
}

// BannedFunc adapts a plain function to BannedHandler.
type BannedFunc func(ctx context.Context)

// Banned calls f(ctx).
func (f BannedFunc) Banned(ctx context.Context) { f(ctx) }

// SessionExpiredFunc adapts a plain function to SessionExpiredHandler.
type SessionExpiredFunc func(ctx context.Context)

// SessionExpired calls f(ctx).
func (f SessionExpiredFunc) SessionExpired(ctx context.Context) { f(ctx) }
