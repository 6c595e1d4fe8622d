package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Reserved record keys. They are owned by the repository and never taken
// from caller payloads.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeLayout renders timestamps the way browsers do (Date.toISOString).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one entry of a collection. On the wire the caller-defined
// fields sit next to id, createdAt and updatedAt in a flat object.
type Record struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    map[string]any
}

// IsReserved reports whether name is one of the repository-owned keys.
func IsReserved(name string) bool {
	switch name {
	case FieldID, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

// Timestamp truncates t to the precision records are stored with.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		if IsReserved(k) {
			continue
		}
		m[k] = v
	}
	m[FieldID] = r.ID
	m[FieldCreatedAt] = r.CreatedAt.UTC().Format(TimeLayout)
	m[FieldUpdatedAt] = r.UpdatedAt.UTC().Format(TimeLayout)
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	m, err := DecodeFields(data)
	if err != nil {
		return err
	}
	id, ok := m[FieldID].(string)
	if !ok {
		return fmt.Errorf("record id must be a string, got %T", m[FieldID])
	}
	createdAt, err := parseTimestamp(m[FieldCreatedAt])
	if err != nil {
		return fmt.Errorf("record %s: createdAt: %w", id, err)
	}
	updatedAt, err := parseTimestamp(m[FieldUpdatedAt])
	if err != nil {
		return fmt.Errorf("record %s: updatedAt: %w", id, err)
	}
	delete(m, FieldID)
	delete(m, FieldCreatedAt)
	delete(m, FieldUpdatedAt)
	*r = Record{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt, Fields: m}
	return nil
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	if r.Fields != nil {
		c.Fields = cloneValue(r.Fields).(map[string]any)
	}
	return c
}

// DecodeFields decodes a JSON object keeping numbers as json.Number, so
// that values survive repeated round trips unchanged.
func DecodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// NormalizeFields passes fields through a JSON round trip, which deep
// copies them and brings every value to its decoded form.
func NormalizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, Validation("fields are not JSON encodable: %v", err)
	}
	return DecodeFields(data)
}

// DecodeRecords parses a collection document.
func DecodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, Internal("collection document is not a valid record array", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// EncodeRecords renders a collection document.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

func parseTimestamp(v any) (time.Time, error) {
	switch s := v.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("expected string, got %T", v)
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
