package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryList is a list of search query strings. Models occasionally return
// queries as objects ({"query": "...", "rationale": "..."}) instead of plain
// strings, so both shapes are accepted when decoding.
type QueryList []string

func (q *QueryList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// a single string is treated as a one-element list
		var single string
		if err2 := json.Unmarshal(data, &single); err2 == nil {
			*q = QueryList{single}
			return nil
		}
		return err
	}

	out := make(QueryList, 0, len(raw))
	for i, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("query at index %d: %w", i, err)
		}
		out = append(out, obj.Query)
	}
	*q = out
	return nil
}

// Clean trims whitespace, drops empty entries and truncates to max when max > 0.
// It returns the cleaned list and the number of entries dropped by truncation.
func (q QueryList) Clean(max int) (QueryList, int) {
	out := make(QueryList, 0, len(q))
	for _, s := range q {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if max > 0 && len(out) > max {
		return out[:max], len(out) - max
	}
	return out, 0
}
