// Package phi keeps protected health information out of reports and logs.
package phi

import "sort"

// Marker replaces every redacted value.
const Marker = "[REDACTED]"

// fields is the fixed set of keys whose values are PHI.
var fields = map[string]struct{}{
	"FName":         {},
	"LName":         {},
	"MiddleI":       {},
	"Birthdate":     {},
	"SSN":           {},
	"Address":       {},
	"City":          {},
	"HmPhone":       {},
	"WkPhone":       {},
	"Email":         {},
	"ProvName":      {},
	"ProcDescript":  {},
	"ToothNum":      {},
	"NoteText":      {},
	"Subscriber":    {},
	"AptDateTime":   {},
	"ProcDate":      {},
	"DateService":   {},
	"DateStatement": {},
	"EntryDateTime": {},
	"Note":          {},
}

// IsPHIField reports whether values stored under key are PHI.
// Matching is exact and case-sensitive.
func IsPHIField(key string) bool {
	_, ok := fields[key]
	return ok
}

// Fields returns the PHI field names in sorted order.
func Fields() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Redact returns a copy of v in which the value of every PHI key, at any
// depth of nested objects and arrays, is replaced by Marker. Structure, key
// order semantics and non-PHI values are preserved. v is never modified, and
// Redact(Redact(v)) equals Redact(v).
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			if IsPHIField(key) {
				out[key] = Marker
				continue
			}
			out[key] = Redact(value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Redact(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Redact(item)
		}
		return out
	default:
		return v
	}
}
