package model

import "time"

// Session keys persisted in the durable key-value store. All of them are
// cleared together on logout or on an unrecoverable authentication failure.
const (
	SessionKeyAccessToken      = "token"
	SessionKeyRefreshToken     = "refreshToken"
	SessionKeyUserID           = "userId"
	SessionKeyFullName         = "fullName"
	SessionKeyEmail            = "email"
	SessionKeyRole             = "role"
	SessionKeyRegisteredUserID = "registeredUserId"
)

// SessionKeys lists every persisted session key in a stable order.
var SessionKeys = []string{
	SessionKeyAccessToken,
	SessionKeyRefreshToken,
	SessionKeyUserID,
	SessionKeyFullName,
	SessionKeyEmail,
	SessionKeyRole,
	SessionKeyRegisteredUserID,
}

// Identity holds the cached profile fields that accompany a login.
type Identity struct {
	UserID           string
	FullName         string
	Email            string
	Role             string
	RegisteredUserID string
}

// SessionEntry is one persisted key-value pair of the session store.
type SessionEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
