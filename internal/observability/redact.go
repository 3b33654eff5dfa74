package observability

import (
	"strings"

	"google.golang.org/grpc/metadata"
)

// RedactionMarker replaces sensitive metadata values in log output.
const RedactionMarker = "[REDACTED]"

// DefaultSensitiveFields returns the metadata key substrings that are
// redacted by default.
func DefaultSensitiveFields() []string {
	return []string{
		"password",
		"token",
		"secret",
		"authorization",
	}
}

// Redactor replaces the values of sensitive metadata keys before they
// reach a log sink. A key is sensitive when its name case-insensitively
// contains any configured substring.
type Redactor struct {
	substrings []string
}

// NewRedactor creates a Redactor for the given key substrings. With no
// arguments the default sensitive fields apply.
func NewRedactor(fields ...string) *Redactor {
	if len(fields) == 0 {
		fields = DefaultSensitiveFields()
	}

	substrings := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.ToLower(f))
		if f != "" {
			substrings = append(substrings, f)
		}
	}

	return &Redactor{substrings: substrings}
}

// Sensitive reports whether the metadata key should be redacted.
func (r *Redactor) Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range r.substrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactMetadata returns a copy of md with sensitive values replaced by
// the redaction marker. The input metadata is never mutated; the call
// keeps using the original.
func (r *Redactor) RedactMetadata(md metadata.MD) metadata.MD {
	if md == nil {
		return nil
	}

	redacted := make(metadata.MD, len(md))
	for key, values := range md {
		if r.Sensitive(key) {
			redacted[key] = []string{RedactionMarker}
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		redacted[key] = copied
	}

	return redacted
}

// RedactMap applies the same redaction to a flat string map, used when
// metadata has already been collapsed for logging.
func (r *Redactor) RedactMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}

	redacted := make(map[string]string, len(values))
	for key, value := range values {
		if r.Sensitive(key) {
			redacted[key] = RedactionMarker
			continue
		}
		redacted[key] = value
	}

	return redacted
}
