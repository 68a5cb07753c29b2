package property

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/liamcoop/underwriting/filterquery"
)

const propertyColumns = `id, title, description, price, beds, baths, sqft, location, status,
	asset_class, category, images, agent_id, created_at, updated_at`

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	schema filterquery.Schema
}

// NewPostgresStore creates a new PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		schema: FilterSchema(),
	}
}

// Add inserts a new property into the database
func (s *PostgresStore) Add(ctx context.Context, p *Property) error {
	if err := validateProperty(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	location, err := json.Marshal(p.Location)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	var agentID sql.NullString
	if p.AgentID != "" {
		agentID = sql.NullString{String: p.AgentID, Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO properties (id, title, description, price, beds, baths, sqft, location, status,
			asset_class, category, images, agent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at, updated_at
	`, p.ID, p.Title, p.Description, p.Price, p.Beds, p.Baths, p.Sqft, string(location), string(p.Status),
		p.AssetClass, p.Category, pq.Array(p.Images), agentID).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("property with ID %s already exists", p.ID)
		}
		return fmt.Errorf("failed to insert property: %w", err)
	}

	return nil
}

// Get retrieves a property by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Property, error) {
	// Malformed IDs cannot match a uuid column; report them as missing instead of a driver error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return p, nil
}

// List runs spec as a parameterized query and counts the total matches
func (s *PostgresStore) List(ctx context.Context, spec filterquery.FilterSpec) (*Page, error) {
	q, err := filterquery.RenderSQL(spec, s.schema, Table, propertyColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to render filter: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, q.Count, q.CountArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}

	props, err := s.query(ctx, q.Select, q.SelectArgs...)
	if err != nil {
		return nil, err
	}

	return &Page{
		Properties: props,
		Total:      total,
		Page:       spec.Page,
		Limit:      spec.PageSize,
		TotalPages: spec.TotalPages(total),
	}, nil
}

// WithinRadius selects the bounding box in SQL and keeps the exact matches
func (s *PostgresStore) WithinRadius(ctx context.Context, center Coordinates, distance float64, unit Unit) ([]*Property, error) {
	radius, err := validateRadius(center, distance, unit)
	if err != nil {
		return nil, err
	}
	box := BoundingBoxAround(center, radius)

	// A box crossing the antimeridian has two longitude ranges; otherwise both are the same.
	ranges := box.LngRanges()
	east, west := ranges[0], ranges[len(ranges)-1]

	candidates, err := s.query(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE jsonb_typeof(location->'coordinates') = 'array'
		AND (location->'coordinates'->>1)::float BETWEEN $1 AND $2
		AND (
			(location->'coordinates'->>0)::float BETWEEN $3 AND $4
			OR (location->'coordinates'->>0)::float BETWEEN $5 AND $6
		)
		ORDER BY id
	`, box.MinLat, box.MaxLat, east[0], east[1], west[0], west[1])
	if err != nil {
		return nil, err
	}

	return withinRadius(candidates, center, radius), nil
}

// MarketStats aggregates over the whole table
func (s *PostgresStore) MarketStats(ctx context.Context) (*MarketStats, error) {
	var (
		stats                                 MarketStats
		avgPrice, minPrice, maxPrice, perSqFt sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			AVG(price),
			MIN(price),
			MAX(price),
			AVG(CASE WHEN sqft > 0 THEN price / sqft ELSE NULL END)
		FROM properties
	`).Scan(&stats.NumProperties, &avgPrice, &minPrice, &maxPrice, &perSqFt)
	if err != nil {
		return nil, fmt.Errorf("failed to compute market stats: %w", err)
	}

	stats.AvgPrice = avgPrice.Float64
	stats.MinPrice = minPrice.Float64
	stats.MaxPrice = maxPrice.Float64
	stats.AvgPricePerSqFt = perSqFt.Float64
	return &stats, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Property, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	props := []*Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		props = append(props, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return props, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*Property, error) {
	var (
		p        Property
		status   string
		location []byte
		agentID  sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Beds,
		&p.Baths,
		&p.Sqft,
		&location,
		&status,
		&p.AssetClass,
		&p.Category,
		pq.Array(&p.Images),
		&agentID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = Status(status)
	p.AgentID = agentID.String
	if len(location) > 0 {
		if err := json.Unmarshal(location, &p.Location); err != nil {
			return nil, fmt.Errorf("invalid location for property %s: %w", p.ID, err)
		}
	}

	return &p, nil
}
