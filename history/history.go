// Package history keeps the time series of portfolio valuations.
//
// The series is persisted as a single document {"history": [...]} and pruned on
// every append: at most MaxEntries entries, none older than MaxAge.
package history

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/cryptofolio"
)

// Retention limits, both apply.
const (
	MaxEntries = 1000
	MaxAge     = 90 * 24 * time.Hour
)

// timestampLayout is ISO-8601 with microseconds and the numeric offset.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Entry is the total value of the portfolio at an instant.
type Entry struct {
	Timestamp time.Time
	Value     float64
}

// NewEntry creates an entry at 'at', displayed in the UTC-3 zone.
func NewEntry(at time.Time, value float64) Entry {
	return Entry{Timestamp: at.In(cryptofolio.Zone), Value: value}
}

type jsonEntry struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonEntry{
		Timestamp: e.Timestamp.In(cryptofolio.Zone).Format(timestampLayout),
		Value:     e.Value,
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var j jsonEntry
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	// RFC3339 accepts any fraction of seconds, including none.
	ts, err := time.Parse(time.RFC3339Nano, j.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", j.Timestamp, err)
	}
	e.Timestamp = ts.In(cryptofolio.Zone)
	e.Value = j.Value
	return nil
}

// document is the persisted form of the series.
type document struct {
	History []Entry `json:"history"`
}

// Decode reads a persisted series. Empty input is an empty series.
func Decode(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return []Entry{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("format error in history: %w", err)
	}
	if doc.History == nil {
		doc.History = []Entry{}
	}
	return doc.History, nil
}

// Encode writes the persisted form of a series.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(document{History: entries}, "", "    ")
}

// Prune applies the retention policy at 'now': entries are sorted newest first,
// truncated to MaxEntries, and anything older than MaxAge is dropped.
//
// The input slice is not modified.
func Prune(entries []Entry, now time.Time) []Entry {
	res := slices.Clone(entries)
	slices.SortStableFunc(res, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(res) > MaxEntries {
		res = res[:MaxEntries]
	}
	cutoff := now.Add(-MaxAge)
	// sorted newest first: everything after the first too old entry is too old too.
	i, _ := slices.BinarySearchFunc(res, cutoff, func(e Entry, t time.Time) int {
		// position of the first entry strictly before the cutoff.
		if e.Timestamp.Before(t) {
			return 1
		}
		return -1
	})
	return res[:i]
}

// Since keeps the entries at or after 'from', preserving their order.
func Since(entries []Entry, from time.Time) []Entry {
	res := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.Before(from) {
			res = append(res, e)
		}
	}
	return res
}

// Bounds returns the lowest and highest values of the series.
func Bounds(entries []Entry) (low, high float64) {
	if len(entries) == 0 {
		return 0, 0
	}
	low = slices.MinFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Value, b.Value) }).Value
	high = slices.MaxFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Value, b.Value) }).Value
	return low, high
}
