package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ericfisherdev/chargepanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlaceSource = (*Client)(nil)

// FetchStationAmenities returns the raw nearby-places body for a station.
func (c *Client) FetchStationAmenities(ctx context.Context, stationID string) ([]byte, error) {
	path := fmt.Sprintf("/api/charging-stations/%s/amenities", url.PathEscape(stationID))

	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
