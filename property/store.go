package property

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/underwriting/filterquery"
)

var (
	// ErrNotFound is returned when no property has the requested ID.
	ErrNotFound = errors.New("property not found")

	// ErrInvalidArgument is returned for malformed store arguments such as an unknown distance unit.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Store manages property persistence and retrieval
type Store interface {
	// Add inserts a property; an empty ID is replaced by a new UUID
	Add(ctx context.Context, p *Property) error

	// Get a property by ID
	Get(ctx context.Context, id string) (*Property, error)

	// List returns one page of the properties matching spec, plus the total match count
	List(ctx context.Context, spec filterquery.FilterSpec) (*Page, error)

	// WithinRadius returns the properties whose coordinates lie within distance of center
	WithinRadius(ctx context.Context, center Coordinates, distance float64, unit Unit) ([]*Property, error)

	// MarketStats aggregates price figures over the whole inventory
	MarketStats(ctx context.Context) (*MarketStats, error)
}

// InMemoryStore implements Store using an in-memory map. Filtering runs the FilterSpec
// through a CEL matcher so results agree with PostgresStore.
// Thread-safe with RWMutex.
type InMemoryStore struct {
	properties map[string]*Property
	matcher    *filterquery.Matcher
	mu         sync.RWMutex
}

// NewInMemoryStore creates a new in-memory property store
func NewInMemoryStore() (*InMemoryStore, error) {
	matcher, err := filterquery.NewMatcher(FilterSchema(), nil)
	if err != nil {
		return nil, err
	}
	return &InMemoryStore{
		properties: make(map[string]*Property),
		matcher:    matcher,
	}, nil
}

func (s *InMemoryStore) Add(ctx context.Context, p *Property) error {
	if err := validateProperty(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.properties[p.ID]; exists {
		return fmt.Errorf("property with ID %s already exists", p.ID)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	cp := *p
	s.properties[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.properties[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) List(ctx context.Context, spec filterquery.FilterSpec) (*Page, error) {
	filter, err := s.matcher.Compile(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", err)
	}

	type row struct {
		p   *Property
		rec map[string]any
	}

	s.mu.RLock()
	var rows []row
	for _, p := range s.properties {
		rec := p.Record()
		ok, err := filter.Match(rec)
		if err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("failed to filter property %s: %w", p.ID, err)
		}
		if ok {
			cp := *p
			rows = append(rows, row{p: &cp, rec: rec})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return s.matcher.Compare(spec.Sort, rows[i].rec, rows[j].rec) < 0
	})

	page := filterquery.Paginate(rows, spec)
	props := make([]*Property, 0, len(page))
	for _, r := range page {
		props = append(props, r.p)
	}

	return &Page{
		Properties: props,
		Total:      len(rows),
		Page:       spec.Page,
		Limit:      spec.PageSize,
		TotalPages: spec.TotalPages(len(rows)),
	}, nil
}

func (s *InMemoryStore) WithinRadius(ctx context.Context, center Coordinates, distance float64, unit Unit) ([]*Property, error) {
	radius, err := validateRadius(center, distance, unit)
	if err != nil {
		return nil, err
	}
	box := BoundingBoxAround(center, radius)

	s.mu.RLock()
	var candidates []*Property
	for _, p := range s.properties {
		if p.Location.Coordinates != nil && box.Contains(*p.Location.Coordinates) {
			cp := *p
			candidates = append(candidates, &cp)
		}
	}
	s.mu.RUnlock()

	return withinRadius(candidates, center, radius), nil
}

func (s *InMemoryStore) MarketStats(ctx context.Context) (*MarketStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &MarketStats{NumProperties: len(s.properties)}
	if len(s.properties) == 0 {
		return stats, nil
	}

	var sum, perSqFtSum float64
	perSqFtCount := 0
	first := true
	for _, p := range s.properties {
		sum += p.Price
		if first || p.Price < stats.MinPrice {
			stats.MinPrice = p.Price
		}
		if first || p.Price > stats.MaxPrice {
			stats.MaxPrice = p.Price
		}
		first = false
		if p.Sqft > 0 {
			perSqFtSum += p.Price / p.Sqft
			perSqFtCount++
		}
	}
	stats.AvgPrice = sum / float64(len(s.properties))
	if perSqFtCount > 0 {
		stats.AvgPricePerSqFt = perSqFtSum / float64(perSqFtCount)
	}
	return stats, nil
}

func validateProperty(p *Property) error {
	if p == nil {
		return fmt.Errorf("%w: property is nil", ErrInvalidArgument)
	}
	if !(p.Price > 0) {
		return fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	}
	if p.Beds < 0 || p.Baths < 0 || p.Sqft < 0 {
		return fmt.Errorf("%w: beds, baths and sqft must be non-negative", ErrInvalidArgument)
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, p.Status)
	}
	return nil
}
