package itinerary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a trip from a YAML document and normalizes its segments.
func LoadFile(path string) (*Trip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trip file: %w", err)
	}
	return Decode(data)
}

func Decode(data []byte) (*Trip, error) {
	var t Trip
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trip: %w", err)
	}
	t.Segments = Normalize(t.Segments)
	t.Queue = Normalize(t.Queue)
	return &t, nil
}

func SaveFile(path string, t *Trip) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trip: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trip file: %w", err)
	}
	return nil
}
