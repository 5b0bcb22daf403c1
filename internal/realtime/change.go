// Package realtime fans database row changes out to subscribers that
// registered a predicate on the table and a record field.
package realtime

import (
	"encoding/json"
	"fmt"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Change is one row change as published by the database triggers.
type Change struct {
	Table  string         `json:"table"`
	Type   ChangeType     `json:"type"`
	Record map[string]any `json:"record"`
	// Unhidden marks an update that made a hidden row visible again.
	Unhidden bool `json:"unhidden,omitempty"`
}

// ParseChange decodes a NOTIFY payload.
func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("decode change: missing table")
	}
	switch c.Type {
	case Insert, Update, Delete:
	default:
		return Change{}, fmt.Errorf("decode change: unknown type %q", c.Type)
	}
	return c, nil
}

// Field returns the record field as a string, or "" when absent.
func (c Change) Field(name string) string {
	v, ok := c.Record[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("%v", v)
}

// Int returns a numeric record field.
func (c Change) Int(name string) (int, bool) {
	f, ok := c.Record[name].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func (c Change) RecordID() string {
	return c.Field("id")
}

// Filter selects changes on Table whose Field equals Value. An empty Field
// matches every change on the table.
type Filter struct {
	Table string `json:"table"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

func (f Filter) Match(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	if f.Field == "" {
		return true
	}
	return c.Field(f.Field) == f.Value
}

func (f Filter) String() string {
	if f.Field == "" {
		return f.Table
	}
	return fmt.Sprintf("%s[%s=%s]", f.Table, f.Field, f.Value)
}
