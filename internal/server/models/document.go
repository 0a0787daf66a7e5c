package models

import (
	"encoding/json"
	"fmt"
)

// DefaultArchiveBucket means "applies to all buckets".
const DefaultArchiveBucket = "*"

// Document is an opaque JSON object with a mandatory string "id" field.
// Data-access configurations and archive jobs are both Documents.
type Document map[string]any

// ParseDocument decodes raw JSON into a Document.
func ParseDocument(raw []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("decode document: not a JSON object")
	}
	return d, nil
}

// ID returns the document id, or "" when absent or not a string.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// StringField returns a string field, or "" when absent or not a string.
func (d Document) StringField(name string) string {
	v, _ := d[name].(string)
	return v
}

// Clone returns a shallow copy so callers can add defaults without touching
// the caller's map.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
