package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"dealflow-ingest/schema"
)

var currencyStripper = strings.NewReplacer("$", "", ",", "", " ", "")

// parseCurrency strips "$" and "," and parses the rest as a float.
//
//	"$1,234.50" -> 1234.5
//	"abc"       -> false
func parseCurrency(raw string) (float64, bool) {
	return parseFinite(currencyStripper.Replace(strings.TrimSpace(raw)))
}

// parsePercentage strips one trailing "%" and parses the rest.
func parsePercentage(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return parseFinite(s)
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

// parseImage picks a single URL out of an array-ish cell: a JSON array
// literal, a ";" or "," separated list, or a bare string.
func parseImage(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return s, true
		}
		for _, v := range arr {
			if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
				return strings.TrimSpace(str), true
			}
		}
		return "", false
	}
	if strings.ContainsAny(s, ";,") {
		parts := splitList(s)
		if len(parts) == 0 {
			return "", false
		}
		return parts[0], true
	}
	return s, true
}

// parseList accepts a JSON array of strings or a ";"/"," separated list.
func parseList(raw string) ([]string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, v := range arr {
				if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
					out = append(out, strings.TrimSpace(str))
				}
			}
			return out, len(out) > 0
		}
	}
	out := splitList(s)
	return out, len(out) > 0
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseJSON keeps a compacted copy of any valid JSON value.
func parseJSON(raw string) (json.RawMessage, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, false
	}
	return json.RawMessage(buf.Bytes()), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var timestampLayouts = append([]string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
}, dateLayouts...)

func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, ok := parseTimestamp(s); ok {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// parseTimestamp accepts common layouts or unix seconds, normalised to UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// coerce converts one trimmed cell to the Go value stored for kind k.
// It reports false when the value should be omitted.
func coerce(k schema.Kind, raw string) (any, bool) {
	var (
		v  any
		ok bool
	)
	switch k {
	case schema.KindInteger:
		var f float64
		if f, ok = parseCurrency(raw); ok {
			f = math.Round(f)
			// float64(MaxInt64) rounds up to 2^63, which does not fit.
			if f >= math.MaxInt64 || f < math.MinInt64 {
				return nil, false
			}
			v = int64(f)
		}
	case schema.KindNumeric:
		v, ok = parseCurrency(raw)
	case schema.KindPercentage:
		v, ok = parsePercentage(raw)
	case schema.KindBoolean:
		v, ok = parseBool(raw), true
	case schema.KindImage:
		v, ok = parseImage(raw)
	case schema.KindArray:
		v, ok = parseList(raw)
	case schema.KindJSON:
		v, ok = parseJSON(raw)
	case schema.KindDate:
		v, ok = parseDate(raw)
	case schema.KindTimestamp:
		v, ok = parseTimestamp(raw)
	default:
		s := strings.TrimSpace(raw)
		v, ok = s, s != ""
	}
	if !ok {
		return nil, false
	}
	return v, true
}
