package phi

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"
)

// secretFields are dropped from log events in addition to the PHI set.
var secretFields = map[string]struct{}{
	"Authorization": {},
	"authorization": {},
	"api_key":       {},
	"developer_key": {},
	"customer_key":  {},
}

// passthroughFields hold values written by the logger itself.
var passthroughFields = map[string]struct{}{
	"time":   {},
	"level":  {},
	"run_id": {},
}

var (
	idPattern = regexp.MustCompile(`(?i)\b(PatNum|AptNum)([:\s=]+)\d+`)

	scrubPatterns = []*regexp.Regexp{
		// SSN
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`),
		// Phone
		regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}|\b\d{10}\b`),
		// Date
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{2}/\d{2}/\d{4}\b|\b\d{2}-\d{2}-\d{4}\b`),
		// E-mail
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		// Quoted name fields inside free text
		regexp.MustCompile(`(?i)["'](FName|LName)["']\s*:\s*["'][^"']+["']`),
	}
)

// ScrubString replaces identifiers and PHI-shaped substrings in s.
// PatNum and AptNum keep their label and lose their value.
func ScrubString(s string) string {
	s = idPattern.ReplaceAllString(s, "${1}${2}"+Marker)
	for _, p := range scrubPatterns {
		s = p.ReplaceAllString(s, Marker)
	}
	return s
}

// LogWriter is an io.Writer that sanitizes log lines before passing them on.
// JSON events have PHI and secret keys removed and string values scrubbed;
// any other input is scrubbed as plain text.
type LogWriter struct {
	w io.Writer
}

// NewLogWriter wraps w with the sanitizer.
func NewLogWriter(w io.Writer) *LogWriter {
	return &LogWriter{w: w}
}

// Write sanitizes p and writes the result to the underlying writer. It
// reports len(p) on success so callers never see a short write.
func (lw *LogWriter) Write(p []byte) (int, error) {
	if _, err := lw.w.Write(Sanitize(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sanitize returns a sanitized copy of one log line.
func Sanitize(line []byte) []byte {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()

		var event map[string]any
		if err := dec.Decode(&event); err == nil {
			for key, value := range event {
				if dropField(key) {
					delete(event, key)
					continue
				}
				if _, ok := passthroughFields[key]; ok {
					continue
				}
				event[key] = sanitizeValue(value)
			}

			out, err := json.Marshal(event)
			if err == nil {
				return append(out, '\n')
			}
		}
	}

	text := ScrubString(string(line))
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return []byte(text)
}

func dropField(key string) bool {
	if IsPHIField(key) {
		return true
	}
	_, ok := secretFields[key]
	return ok
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return ScrubString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			if dropField(key) {
				out[key] = Marker
				continue
			}
			out[key] = sanitizeValue(value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}
