package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionCredentials = (*Session)(nil)

// Session is the process-wide credential state. It caches the durable session
// store in memory behind a RWMutex; every write goes through to the store while
// holding the write lock, so a request decorated after a write always sees the
// new token.
type Session struct {
	mu     sync.RWMutex
	store  driven.SessionStore
	values map[string]string
	logger *slog.Logger

	hookMu  sync.Mutex
	onReset []func()
}

// NewSession creates a Session backed by store. Call Load to pick up a
// session persisted by a previous run.
func NewSession(store driven.SessionStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:  store,
		values: make(map[string]string),
		logger: logger,
	}
}

// Load replaces the in-memory state with the contents of the durable store.
func (s *Session) Load(ctx context.Context) error {
	values, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string, len(values))
	for _, key := range model.SessionKeys {
		if v := values[key]; v != "" {
			s.values[key] = v
		}
	}
	return nil
}

// AccessToken returns the current bearer token, or "" when signed out.
func (s *Session) AccessToken() string {
	return s.get(model.SessionKeyAccessToken)
}

// RefreshToken returns the current refresh token, or "".
func (s *Session) RefreshToken() string {
	return s.get(model.SessionKeyRefreshToken)
}

// Authenticated reports whether an access token is held.
func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

// Identity returns the cached profile fields of the signed-in user.
func (s *Session) Identity() model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Identity{
		UserID:           s.values[model.SessionKeyUserID],
		FullName:         s.values[model.SessionKeyFullName],
		Email:            s.values[model.SessionKeyEmail],
		Role:             s.values[model.SessionKeyRole],
		RegisteredUserID: s.values[model.SessionKeyRegisteredUserID],
	}
}

// AccessTokenExpiry reads the exp claim of the access token without verifying
// its signature. ok is false when no token is held or it carries no expiry.
func (s *Session) AccessTokenExpiry() (time.Time, bool) {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}, false
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// OnReset registers fn to run after a session is started or cleared, such
// as purging data cached for the previous user.
func (s *Session) OnReset(fn func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onReset = append(s.onReset, fn)
}

func (s *Session) reset() {
	s.hookMu.Lock()
	hooks := append([]func(){}, s.onReset...)
	s.hookMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Start stores the credentials and identity produced by a login.
func (s *Session) Start(ctx context.Context, accessToken, refreshToken string, id model.Identity) error {
	if accessToken == "" {
		return fmt.Errorf("start session: access token is required")
	}
	defer s.reset()

	return s.write(ctx, map[string]string{
		model.SessionKeyAccessToken:      accessToken,
		model.SessionKeyRefreshToken:     refreshToken,
		model.SessionKeyUserID:           id.UserID,
		model.SessionKeyFullName:         id.FullName,
		model.SessionKeyEmail:            id.Email,
		model.SessionKeyRole:             id.Role,
		model.SessionKeyRegisteredUserID: id.RegisteredUserID,
	})
}

// SetTokens stores a freshly minted access token. An empty refreshToken keeps
// the current one.
func (s *Session) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	values := map[string]string{model.SessionKeyAccessToken: accessToken}
	if refreshToken != "" {
		values[model.SessionKeyRefreshToken] = refreshToken
	}
	return s.write(ctx, values)
}

// ClearTokens removes the tokens and all cached identity fields. The in-memory
// state is cleared even if the durable store fails.
func (s *Session) ClearTokens(ctx context.Context) error {
	defer s.reset()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]string)
	if err := s.store.Delete(ctx, model.SessionKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}

func (s *Session) get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// write applies values to the cache and the store under the write lock. An
// empty value removes the key. The cache is updated even when persistence
// fails so the running process keeps working with the newest credentials.
func (s *Session) write(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		if v == "" {
			delete(s.values, k)
			continue
		}
		s.values[k] = v
	}

	if err := s.store.SetMany(ctx, values); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
