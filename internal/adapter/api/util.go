package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const maxMessageLen = 200

// messageFrom extracts a human-readable reason from an error body. The
// backend uses "error", "message", "detail" or "details"; serializer
// failures come back as {"field": ["reason"]}.
func messageFrom(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return truncate(strings.TrimSpace(string(body)))
	}
	for _, key := range []string{"error", "message", "detail", "details"} {
		if s := textOf(fields[key]); s != "" {
			return truncate(s)
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := textOf(fields[k]); s != "" {
			return truncate(k + ": " + s)
		}
	}
	return ""
}

// textOf returns raw as a string when it is a JSON string or the first
// string of a JSON array.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLen {
		return s
	}
	return string(r[:maxMessageLen]) + "…"
}

func decodeJSON(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// amount is a nutrient quantity. The recognizer emits numbers, but values
// extracted from label text sometimes arrive as numeric strings.
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*a = amount(f)
	return nil
}

// identifier accepts ids sent either as JSON strings or numbers.
type identifier string

func (id *identifier) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id: %s", b)
	}
	*id = identifier(n.String())
	return nil
}
