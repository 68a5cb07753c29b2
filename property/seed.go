package property

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadSeed decodes a JSON array of properties.
func LoadSeed(r io.Reader) ([]*Property, error) {
	var props []*Property
	if err := json.NewDecoder(r).Decode(&props); err != nil {
		return nil, fmt.Errorf("failed to decode seed data: %w", err)
	}
	return props, nil
}

// SeedFromFile adds every property in the JSON file at path to store.
func SeedFromFile(ctx context.Context, store Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	props, err := LoadSeed(f)
	if err != nil {
		return 0, err
	}

	for i, p := range props {
		if p == nil {
			return i, fmt.Errorf("failed to seed property %d: %w: entry is null", i, ErrInvalidArgument)
		}
		if err := store.Add(ctx, p); err != nil {
			return i, fmt.Errorf("failed to seed property %d (%s): %w", i, p.Title, err)
		}
	}
	return len(props), nil
}
