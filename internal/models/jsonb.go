package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonbValue marshals v for storage in a JSONB column.
func jsonbValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}

// jsonbScan unmarshals a JSONB column into dst. NULL leaves dst untouched.
func jsonbScan(src interface{}, dst interface{}) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// StringList is a JSONB-backed list of identifiers.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return jsonbScan(src, l)
}

// Contains reports whether id is present.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id when absent and returns the resulting list.
func (l StringList) Add(id string) StringList {
	if l.Contains(id) {
		return l
	}
	return append(l, id)
}

// Remove strips id and returns a fresh list, leaving the receiver's backing
// array untouched.
func (l StringList) Remove(id string) StringList {
	out := make(StringList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
