package driven

import "context"

// SessionCredentials is the only mutation surface for the bearer credentials
// used by the API client. Implementations must make writes visible atomically
// to subsequent reads.
type SessionCredentials interface {
	AccessToken() string
	RefreshToken() string

	// SetTokens stores a new access token. An empty refreshToken keeps the
	// current refresh token.
	SetTokens(ctx context.Context, accessToken, refreshToken string) error

	// ClearTokens removes the tokens and every cached identity field.
	ClearTokens(ctx context.Context) error
}
