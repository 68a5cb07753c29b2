package property

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the listing state of a property.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusSold    Status = "sold"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusSold:
		return true
	}
	return false
}

// Coordinates is a point encoded in JSON as a GeoJSON-style [lng, lat] pair.
type Coordinates struct {
	Lng float64
	Lat float64
}

func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lng, c.Lat})
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinates must be a [lng, lat] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinates must have 2 elements, got %d", len(pair))
	}
	c.Lng, c.Lat = pair[0], pair[1]
	return nil
}

// Location is stored as a JSON document.
type Location struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Property is a listing in the inventory.
type Property struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Beds        float64   `json:"beds"`
	Baths       float64   `json:"baths"`
	Sqft        float64   `json:"sqft"`
	Location    Location  `json:"location"`
	Status      Status    `json:"status"`
	AssetClass  string    `json:"asset_class,omitempty"`
	Category    string    `json:"category,omitempty"`
	Images      []string  `json:"images,omitempty"`
	AgentID     string    `json:"agent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record flattens the property into the field names of FilterSchema.
func (p *Property) Record() map[string]any {
	return map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"price":       p.Price,
		"beds":        p.Beds,
		"baths":       p.Baths,
		"sqft":        p.Sqft,
		"status":      string(p.Status),
		"asset_class": p.AssetClass,
		"category":    p.Category,
		"address":     p.Location.Address,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

// Page is one page of a filtered listing.
type Page struct {
	Properties []*Property `json:"properties"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

// MarketStats summarizes the whole inventory.
type MarketStats struct {
	NumProperties   int     `json:"numProperties"`
	AvgPrice        float64 `json:"avgPrice"`
	MinPrice        float64 `json:"minPrice"`
	MaxPrice        float64 `json:"maxPrice"`
	AvgPricePerSqFt float64 `json:"avgPricePerSqFt"`
}
