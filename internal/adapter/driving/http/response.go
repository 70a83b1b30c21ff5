package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeRedirectError writes an error that the presentation layer resolves by
// navigating to redirect.
func writeRedirectError(w http.ResponseWriter, status int, message, redirect string) {
	writeJSON(w, status, errorResponse{Error: message, Redirect: redirect})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// DistanceResponse is the JSON representation of a place's distance.
type DistanceResponse struct {
	Meters *float64 `json:"meters,omitempty"`
	Km     *float64 `json:"km,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// PlaceResponse is the JSON representation of a normalized nearby place.
type PlaceResponse struct {
	Name              string            `json:"name"`
	Address           string            `json:"address,omitempty"`
	Description       string            `json:"description,omitempty"`
	Category          string            `json:"category,omitempty"`
	Distance          *DistanceResponse `json:"distance,omitempty"`
	TravelTimeMinutes *float64          `json:"travelTimeMinutes,omitempty"`
	Rating            *float64          `json:"rating,omitempty"`
	Highlights        []string          `json:"highlights"`
}

// StartSessionRequest is the JSON body handed over after a successful login.
type StartSessionRequest struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	UserID           string `json:"userId"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	RegisteredUserID string `json:"registeredUserId"`
}

// IdentityResponse is the JSON representation of the signed-in user.
type IdentityResponse struct {
	UserID           string `json:"userId"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	RegisteredUserID string `json:"registeredUserId"`
}

// SessionResponse describes the current session state.
type SessionResponse struct {
	Authenticated        bool              `json:"authenticated"`
	User                 *IdentityResponse `json:"user,omitempty"`
	AccessTokenExpiresAt string            `json:"accessTokenExpiresAt,omitempty"`
	AccessTokenExpired   bool              `json:"accessTokenExpired"`
}

// NavigationResponse is a pending redirect for the presentation layer.
type NavigationResponse struct {
	Redirect string `json:"redirect"`
	Reason   string `json:"reason"`
	At       string `json:"at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toPlaceResponse converts a domain Place to its JSON response representation.
func toPlaceResponse(p model.Place) PlaceResponse {
	highlights := p.Highlights
	if highlights == nil {
		highlights = []string{}
	}

	var distance *DistanceResponse
	if p.Distance != nil && !p.Distance.IsZero() {
		distance = &DistanceResponse{
			Meters: p.Distance.Meters,
			Km:     p.Distance.Km,
			Text:   p.Distance.Text,
		}
	}

	return PlaceResponse{
		Name:              p.Name,
		Address:           p.Address,
		Description:       p.Description,
		Category:          p.Category,
		Distance:          distance,
		TravelTimeMinutes: p.TravelTimeMinutes,
		Rating:            p.Rating,
		Highlights:        highlights,
	}
}

// toIdentityResponse converts a domain Identity to its JSON representation.
func toIdentityResponse(id model.Identity) *IdentityResponse {
	return &IdentityResponse{
		UserID:           id.UserID,
		FullName:         id.FullName,
		Email:            id.Email,
		Role:             id.Role,
		RegisteredUserID: id.RegisteredUserID,
	}
}

// toNavigationResponse converts a pending Redirect to its JSON representation.
func toNavigationResponse(r Redirect) NavigationResponse {
	return NavigationResponse{
		Redirect: r.Path,
		Reason:   r.Reason,
		At:       r.At.UTC().Format(time.RFC3339),
	}
}
