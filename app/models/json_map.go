package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONMap is a schema-flexible JSON column used for audit snapshots and raw
// provider payloads. Known shapes are written through typed helpers; anything
// else stays queryable as a free-form object.
type JSONMap map[string]interface{}

// Value implements driver.Valuer so GORM can persist the map as JSON.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading JSON columns back into the map.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap source type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// SnapshotOf marshals any struct into a JSONMap for audit before/after fields.
func SnapshotOf(v interface{}) (JSONMap, error) {
	if v == nil {
		return nil, errors.New("cannot snapshot nil value")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
