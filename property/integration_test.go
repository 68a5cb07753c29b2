//go:build integration
// +build integration

package property_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/liamcoop/underwriting/filterquery"
	"github.com/liamcoop/underwriting/internal/testdb"
	"github.com/liamcoop/underwriting/property"
)

func seedPostgres(t *testing.T, store property.Store) map[string]string {
	t.Helper()
	austin := property.Coordinates{Lng: -97.7431, Lat: 30.2672}
	near := property.Coordinates{Lng: -97.7431, Lat: 30.3672}
	listings := []*property.Property{
		{Title: "Cozy Bungalow", Price: 150000, Beds: 2, Baths: 1, Sqft: 900,
			Location: property.Location{Address: "12 Elm St, Austin", Coordinates: &austin}},
		{Title: "Family Home", Price: 340000, Beds: 4, Baths: 2, Sqft: 2000,
			Location: property.Location{Address: "48 Oak Ave, Austin", Coordinates: &near}, Images: []string{"a.jpg", "b.jpg"}},
		{Title: "Downtown Loft", Price: 520000, Beds: 1, Baths: 1, Sqft: 1000, Status: property.StatusPending,
			Location: property.Location{Address: "1 Main St, Dallas"}, AgentID: uuid.NewString()},
	}

	byTitle := map[string]string{}
	for _, p := range listings {
		if err := store.Add(context.Background(), p); err != nil {
			t.Fatalf("Failed to add property: %v", err)
		}
		byTitle[p.Title] = p.ID
	}
	return byTitle
}

func TestPostgresStore_AddAndGet(t *testing.T) {
	db, cleanup := testdb.Setup(t)
	defer cleanup()

	store := property.NewPostgresStore(db)
	ids := seedPostgres(t, store)
	ctx := context.Background()

	p, err := store.Get(ctx, ids["Family Home"])
	if err != nil {
		t.Fatalf("Failed to get property: %v", err)
	}
	if p.Price != 340000 || p.Beds != 4 {
		t.Errorf("Expected price 340000 and 4 beds, got %v and %v", p.Price, p.Beds)
	}
	if p.Location.Coordinates == nil || p.Location.Coordinates.Lat != 30.3672 {
		t.Errorf("Expected coordinates to round-trip, got %+v", p.Location.Coordinates)
	}
	if len(p.Images) != 2 {
		t.Errorf("Expected 2 images, got %d", len(p.Images))
	}
	if p.Status != property.StatusActive {
		t.Errorf("Expected status active, got %s", p.Status)
	}

	if _, err := store.Get(ctx, uuid.NewString()); !errors.Is(err, property.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
	if _, err := store.Get(ctx, "not-a-uuid"); !errors.Is(err, property.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for malformed id, got %v", err)
	}

	dup := &property.Property{ID: ids["Family Home"], Title: "Again", Price: 1}
	if err := store.Add(ctx, dup); err == nil {
		t.Error("Expected error when adding duplicate property, got nil")
	}
}

func TestPostgresStore_List(t *testing.T) {
	db, cleanup := testdb.Setup(t)
	defer cleanup()

	store := property.NewPostgresStore(db)
	ids := seedPostgres(t, store)
	builder, err := filterquery.NewBuilder(property.FilterSchema(), filterquery.MaxPageSize)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}

	tests := []struct {
		name      string
		query     url.Values
		wantTitle []string
		wantTotal int
	}{
		{"price range", url.Values{"price[gte]": {"200000"}, "sort": {"-price"}},
			[]string{"Downtown Loft", "Family Home"}, 2},
		{"search address", url.Values{"search": {"austin"}, "sort": {"price"}},
			[]string{"Cozy Bungalow", "Family Home"}, 2},
		{"status", url.Values{"status": {"pending"}}, []string{"Downtown Loft"}, 1},
		{"paged", url.Values{"sort": {"price"}, "limit": {"1"}, "page": {"2"}}, []string{"Family Home"}, 3},
		{"wildcards are literal", url.Values{"search": {"%"}}, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.List(context.Background(), builder.BuildFromQuery(tt.query))
			if err != nil {
				t.Fatalf("Failed to list properties: %v", err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Expected total %d, got %d", tt.wantTotal, page.Total)
			}
			if len(page.Properties) != len(tt.wantTitle) {
				t.Fatalf("Expected %d properties, got %d", len(tt.wantTitle), len(page.Properties))
			}
			for i, p := range page.Properties {
				if p.ID != ids[tt.wantTitle[i]] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.wantTitle[i], p.Title)
				}
			}
		})
	}
}

func TestPostgresStore_WithinRadiusAndStats(t *testing.T) {
	db, cleanup := testdb.Setup(t)
	defer cleanup()

	store := property.NewPostgresStore(db)
	seedPostgres(t, store)
	ctx := context.Background()

	center := property.Coordinates{Lng: -97.7431, Lat: 30.2672}
	within, err := store.WithinRadius(ctx, center, 5, property.Miles)
	if err != nil {
		t.Fatalf("Failed radius search: %v", err)
	}
	if len(within) != 1 || within[0].Title != "Cozy Bungalow" {
		t.Errorf("Expected only Cozy Bungalow within 5 miles, got %d results", len(within))
	}

	within, err = store.WithinRadius(ctx, center, 20, property.Kilometers)
	if err != nil {
		t.Fatalf("Failed radius search: %v", err)
	}
	if len(within) != 2 {
		t.Errorf("Expected 2 properties within 20 km, got %d", len(within))
	}

	stats, err := store.MarketStats(ctx)
	if err != nil {
		t.Fatalf("Failed to compute stats: %v", err)
	}
	if stats.NumProperties != 3 || stats.MinPrice != 150000 || stats.MaxPrice != 520000 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
