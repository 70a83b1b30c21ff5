// Package httphandler is the JSON driving adapter the presentation layer talks to.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ericfisherdev/chargepanel/internal/application"
	"github.com/ericfisherdev/chargepanel/internal/domain/model"
	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies accepted by the API.
const maxBodyBytes = 64 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	places    *application.PlaceService
	session   *application.Session
	navigator *Navigator
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	places *application.PlaceService,
	session *application.Session,
	navigator *Navigator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		places:    places,
		session:   session,
		navigator: navigator,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, recovery and tracing middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/stations/{id}/places", h.ListNearbyPlaces)
	mux.HandleFunc("POST /api/v1/session", h.StartSession)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("DELETE /api/v1/session", h.EndSession)
	mux.HandleFunc("GET /api/v1/navigation", h.TakeNavigation)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return otelhttp.NewHandler(wrapped, "chargepanel")
}

// ListNearbyPlaces returns the normalized places around a charging station.
func (h *Handler) ListNearbyPlaces(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("id")

	places, err := h.places.NearbyPlaces(r.Context(), stationID)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidStationID):
			writeError(w, http.StatusBadRequest, "invalid station id")
		case errors.Is(err, driven.ErrBanned):
			writeRedirectError(w, http.StatusForbidden, "account is banned", h.navigator.BannedPath())
		case errors.Is(err, driven.ErrSessionExpired):
			writeRedirectError(w, http.StatusUnauthorized, "session expired", h.navigator.LoginPath())
		default:
			h.logger.Error("failed to fetch nearby places", "station_id", stationID, "error", err)
			writeError(w, http.StatusBadGateway, "upstream request failed")
		}
		return
	}

	resp := make([]PlaceResponse, 0, len(places))
	for _, p := range places {
		resp = append(resp, toPlaceResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartSession stores the credentials and identity returned by a login.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.AccessToken) == "" {
		writeError(w, http.StatusBadRequest, "accessToken is required")
		return
	}

	id := model.Identity{
		UserID:           req.UserID,
		FullName:         req.FullName,
		Email:            req.Email,
		Role:             req.Role,
		RegisteredUserID: req.RegisteredUserID,
	}
	if err := h.session.Start(r.Context(), req.AccessToken, req.RefreshToken, id); err != nil {
		h.logger.Error("failed to start session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, h.sessionResponse())
}

// GetSession reports whether a user is signed in and who it is.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionResponse())
}

// EndSession signs the user out, clearing every session key.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearTokens(r.Context()); err != nil {
		h.logger.Error("failed to clear session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TakeNavigation returns the pending redirect once, or 204 when there is none.
func (h *Handler) TakeNavigation(w http.ResponseWriter, _ *http.Request) {
	redirect, ok := h.navigator.Take()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, toNavigationResponse(redirect))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) sessionResponse() SessionResponse {
	if !h.session.Authenticated() {
		return SessionResponse{}
	}

	resp := SessionResponse{
		Authenticated: true,
		User:          toIdentityResponse(h.session.Identity()),
	}
	if exp, ok := h.session.AccessTokenExpiry(); ok {
		resp.AccessTokenExpiresAt = exp.UTC().Format(time.RFC3339)
		resp.AccessTokenExpired = !time.Now().Before(exp)
	}
	return resp
}
