package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// refreshFlightKey is the single-flight key shared by every refresh attempt.
const refreshFlightKey = "refresh"

var (
	errNoRefreshToken = errors.New("no refresh token")
	errSessionCleared = errors.New("session already cleared")
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Success bool `json:"success"`
	Data    struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// refreshAccessToken returns a usable access token after a 401. Concurrent
// callers share one refresh: the first performs it, the rest wait for its
// outcome. sentToken is the token the failed request carried.
func (c *Client) refreshAccessToken(ctx context.Context, sentToken string, apiErr *APIError) (string, error) {
	// The shared refresh must not be cancelled by whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)

	ch := c.refreshGroup.DoChan(refreshFlightKey, func() (any, error) {
		return c.runRefresh(flightCtx, sentToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, errNoRefreshToken) || errors.Is(res.Err, errSessionCleared) {
				return "", fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
			}
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runRefresh is the body of the single flight.
func (c *Client) runRefresh(ctx context.Context, sentToken string) (string, error) {
	current := c.session.AccessToken()
	if current != "" && current != sentToken {
		// An earlier flight already rotated the token.
		return current, nil
	}
	if current == "" && sentToken != "" {
		// An earlier flight already ended the session and notified once.
		return "", errSessionCleared
	}

	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		c.logger.Warn("access token rejected and no refresh token available")
		c.endSession(ctx)
		return "", errNoRefreshToken
	}

	refreshCtx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	accessToken, rotated, err := c.callRefresh(refreshCtx, refreshToken)
	if err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		c.endSession(ctx)
		return "", fmt.Errorf("%w: %w: %w", ErrSessionExpired, ErrRefreshFailed, err)
	}

	if err := c.session.SetTokens(ctx, accessToken, rotated); err != nil {
		c.logger.Warn("persisting refreshed tokens failed", "error", err)
	}
	c.logger.Info("access token refreshed", "refresh_token_rotated", rotated != "")

	return accessToken, nil
}

// callRefresh exchanges refreshToken for a new access token. It bypasses
// decoration and recovery so a failing refresh can never recurse.
func (c *Client) callRefresh(ctx context.Context, refreshToken string) (string, string, error) {
	target, err := c.resolve(c.refreshPath, nil)
	if err != nil {
		return "", "", err
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", "", fmt.Errorf("encoding refresh request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("creating refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("refresh request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return "", "", fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &APIError{
			Method:     http.MethodPost,
			Path:       c.refreshPath,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return "", "", fmt.Errorf("decoding refresh response: %w", err)
	}
	if !rr.Success || rr.Data.AccessToken == "" {
		msg := rr.Error
		if msg == "" {
			msg = rr.Message
		}
		return "", "", fmt.Errorf("refresh response unsuccessful: %q", msg)
	}

	return rr.Data.AccessToken, rr.Data.RefreshToken, nil
}

// endSession clears every session key and notifies the SessionExpiredHandler.
func (c *Client) endSession(ctx context.Context) {
	if err := c.session.ClearTokens(ctx); err != nil {
		c.logger.Error("clearing session failed", "error", err)
	}
	if c.cache != nil {
		c.cache.Purge()
	}
	if c.onSessionExpired != nil {
		c.onSessionExpired.SessionExpired(ctx)
	}
}
