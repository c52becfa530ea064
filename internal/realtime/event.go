package realtime

import (
	"encoding/json"
	"fmt"
)

// Tables carried on the change feed.
const (
	TableMessages      = "messages"
	TableNotifications = "notifications"
	TableCheckIns      = "check_ins"
	TableProfiles      = "profiles"
)

// EventType is the row operation that produced a change event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-level change. Record is the new row (INSERT/UPDATE); OldRecord is the
// previous row (UPDATE/DELETE).
type ChangeEvent struct {
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// Row returns the row the event is about: the old row for DELETE, the new row otherwise.
func (e ChangeEvent) Row() json.RawMessage {
	if e.Type == EventDelete {
		return e.OldRecord
	}
	return e.Record
}

// Filter restricts a subscription to rows whose Column equals Value. The zero Filter matches all.
type Filter struct {
	Column string
	Value  string
}

// Eq builds a Filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev ChangeEvent) bool {
	if f.Column == "" {
		return true
	}
	var row map[string]any
	if err := json.Unmarshal(ev.Row(), &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}
