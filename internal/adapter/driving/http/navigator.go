package httphandler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.BannedHandler         = (*Navigator)(nil)
	_ driven.SessionExpiredHandler = (*Navigator)(nil)
)

// Redirect is a navigation the presentation layer still has to perform.
type Redirect struct {
	Path   string
	Reason string
	At     time.Time
}

// Navigator turns authentication events from the API client into pending
// redirects. Only the latest redirect is kept; Take hands it out once.
type Navigator struct {
	mu         sync.Mutex
	bannedPath string
	loginPath  string
	pending    *Redirect
	logger     *slog.Logger
}

// NewNavigator creates a Navigator that sends banned accounts to bannedPath
// and expired sessions to loginPath.
func NewNavigator(bannedPath, loginPath string, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		bannedPath: bannedPath,
		loginPath:  loginPath,
		logger:     logger,
	}
}

// Banned records a redirect to the penalty payment page.
func (n *Navigator) Banned(_ context.Context) {
	n.record(n.bannedPath, "banned")
}

// SessionExpired records a redirect to the login page.
func (n *Navigator) SessionExpired(_ context.Context) {
	n.record(n.loginPath, "session_expired")
}

// BannedPath returns the penalty payment route.
func (n *Navigator) BannedPath() string { return n.bannedPath }

// LoginPath returns the login route.
func (n *Navigator) LoginPath() string { return n.loginPath }

// Take returns and clears the pending redirect.
func (n *Navigator) Take() (Redirect, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pending == nil {
		return Redirect{}, false
	}
	r := *n.pending
	n.pending = nil
	return r, true
}

func (n *Navigator) record(path, reason string) {
	n.mu.Lock()
	n.pending = &Redirect{Path: path, Reason: reason, At: time.Now().UTC()}
	n.mu.Unlock()

	n.logger.Info("navigation requested", "path", path, "reason", reason)
}
