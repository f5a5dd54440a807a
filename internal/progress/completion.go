package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// Record is one completion fact with the time it was recorded.
type Record struct {
	Key
	CompletedAt time.Time `json:"completedAt"`
}

// Completion is a user's full completion mapping. It is the unit of
// persistence: back ends always store and load it whole.
type Completion map[Key]Record

// Has reports whether k is recorded.
func (c Completion) Has(k Key) bool {
	_, ok := c[k]
	return ok
}

// Clone returns a copy that can be changed without affecting c.
func (c Completion) Clone() Completion {
	out := make(Completion, len(c))
	maps.Copy(out, c)
	return out
}

// Records returns the records sorted by their string form.
func (c Completion) Records() []Record {
	out := slices.Collect(maps.Values(c))
	slices.SortFunc(out, func(a, b Record) int {
		switch sa, sb := a.String(), b.String(); {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	return out
}

// FromRecords builds a mapping from records, skipping invalid keys.
func FromRecords(records []Record) Completion {
	out := make(Completion, len(records))
	for _, r := range records {
		if err := r.Key.Validate(); err != nil {
			slog.Warn("dropping invalid progress record", "key", r.Key.String(), "error", err)
			continue
		}
		out[r.Key] = r
	}
	return out
}

// MarshalJSON encodes the mapping as a sorted array of records.
func (c Completion) MarshalJSON() ([]byte, error) {
	records := c.Records()
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// UnmarshalJSON accepts the record array written by MarshalJSON and the
// older object form {"course:lesson": {"completedAt": ...}}.
func (c *Completion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Completion{}
		return nil
	case data[0] == '[':
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode progress records: %w", err)
		}
		*c = FromRecords(records)
		return nil
	case data[0] == '{':
		var legacy map[string]struct {
			CompletedAt time.Time `json:"completedAt"`
		}
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("decode legacy progress: %w", err)
		}
		out := make(Completion, len(legacy))
		for s, v := range legacy {
			k, err := ParseKey(s)
			if err != nil {
				slog.Warn("dropping unreadable legacy progress key", "key", s, "error", err)
				continue
			}
			out[k] = Record{Key: k, CompletedAt: v.CompletedAt}
		}
		*c = out
		return nil
	}
	return fmt.Errorf("decode progress: unexpected JSON %q", truncate(data, 16))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// mark records k at t, refreshing the timestamp of an existing record.
func (c Completion) mark(k Key, t time.Time) {
	c[k] = Record{Key: k, CompletedAt: t}
}

// resetUnit deletes the keys of one unit. A lesson reset also clears all of
// its sub-lessons. It returns the number of keys removed.
func (c Completion) resetUnit(courseID, lessonID, sublessonID string) int {
	n := 0
	for k := range c {
		var hit bool
		if sublessonID == "" {
			hit = k.inLesson(courseID, lessonID)
		} else {
			hit = k.inUnit(courseID, lessonID, sublessonID)
		}
		if hit {
			delete(c, k)
			n++
		}
	}
	return n
}
