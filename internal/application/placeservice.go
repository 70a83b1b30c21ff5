package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

// ErrInvalidStationID is returned when a station ID is empty.
var ErrInvalidStationID = errors.New("station id is required")

// PlaceService fetches nearby places for a charging station and normalizes
// whatever shape the backend returns.
type PlaceService struct {
	source     driven.PlaceSource
	normalizer *PlaceNormalizer
	logger     *slog.Logger
}

// NewPlaceService creates a new PlaceService.
func NewPlaceService(source driven.PlaceSource, normalizer *PlaceNormalizer, logger *slog.Logger) *PlaceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaceService{
		source:     source,
		normalizer: normalizer,
		logger:     logger,
	}
}

// NearbyPlaces returns the places around stationID. Transport and
// authentication failures are returned unchanged (wrapped); payload shape
// problems never are.
func (s *PlaceService) NearbyPlaces(ctx context.Context, stationID string) ([]model.Place, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, ErrInvalidStationID
	}

	body, err := s.source.FetchStationAmenities(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("fetching amenities for station %s: %w", stationID, err)
	}

	places := s.normalizer.Normalize(body)
	s.logger.Debug("nearby places normalized",
		"station_id", stationID,
		"body_bytes", len(body),
		"places", len(places),
	)
	return places, nil
}
