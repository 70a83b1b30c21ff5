package model

// Distance describes how far a place is from the charging station. Any subset
// of the fields may be set; Text carries the backend's human-readable form.
type Distance struct {
	Meters *float64 `json:"meters,omitempty"`
	Km     *float64 `json:"km,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// IsZero reports whether no distance information is present.
func (d Distance) IsZero() bool {
	return d.Meters == nil && d.Km == nil && d.Text == ""
}

// Place is a point of interest near a charging station, as shown on the
// station detail view. Every field is optional; places are produced fresh for
// each query and never persisted.
type Place struct {
	Name              string    `json:"name,omitempty"`
	Address           string    `json:"address,omitempty"`
	Description       string    `json:"description,omitempty"`
	Category          string    `json:"category,omitempty"`
	Distance          *Distance `json:"distance,omitempty"`
	TravelTimeMinutes *float64  `json:"travelTimeMinutes,omitempty"`
	Rating            *float64  `json:"rating,omitempty"`
	Highlights        []string  `json:"highlights,omitempty"`
}
