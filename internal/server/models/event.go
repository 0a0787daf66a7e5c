package models

import (
	"encoding/json"
	"time"
)

// Event types published by the coordinator.
const (
	EventCreateArchiveJob = "create_archive_job"
	EventUserAdd          = "user.add"
	EventUserRemove       = "user.remove"
)

// Event is a lifecycle notification. Payload fields are flattened next to
// the envelope fields when encoded.
type Event struct {
	ID      string
	Sender  string
	Type    string
	Time    time.Time
	Payload map[string]any
}

// Subject is the partitioning key of the event: the job id, uid or bucket
// the event is about.
func (e Event) Subject() string {
	for _, k := range []string{"job_id", "uid", "bucket"} {
		if s, ok := e.Payload[k].(string); ok && s != "" {
			return s
		}
	}
	return e.ID
}

func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Payload)+4)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["id"] = e.ID
	m["sender"] = e.Sender
	m["type"] = e.Type
	if !e.Time.IsZero() {
		m["time"] = e.Time.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(m)
}
