package store

import (
	"encoding/json"
	"fmt"
)

// MarshalAttrs converts an entity into the map form stored in Attrs.
func MarshalAttrs(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return attrs, nil
}

// UnmarshalAttrs decodes stored attributes into an entity value.
func UnmarshalAttrs(attrs map[string]any, v any) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return nil
}
