package service

import (
	"context"
	"regexp"
	"strings"

	"leadmatch_backend/internal/identifiers/repository"
	"leadmatch_backend/platform/phone"
)

// Observation is one raw payload from the content/signal source: page text
// plus whatever cookies and structured fields were captured alongside it.
type Observation struct {
	Site    string
	Text    string
	Cookies map[string]string
	Fields  map[string]string
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
)

// trackingCookies is the allow-list of known tracking cookie names. Exact
// names match directly; names ending in "_" are prefixes (mixpanel appends
// a project token to "mp_").
var trackingCookies = map[string]bool{
	"_ga":              true,
	"_gid":             true,
	"_fbp":             true,
	"_fbc":             true,
	"_gcl_au":          true,
	"_uetvid":          true,
	"ajs_anonymous_id": true,
	"amplitude_id":     true,
	"hubspotutk":       true,
	"intercom-id":      true,
}

var trackingCookiePrefixes = []string{"mp_", "_hj"}

// Extract applies the text patterns and structured-data heuristics to one
// observation and tracks every hit. A failure on one identifier is logged
// and skipped; the rest of the observation still goes through.
func (s *Service) Extract(ctx context.Context, obs Observation) []repository.Identifier {
	var tracked []repository.Identifier

	record := func(t repository.IdentifierType, raw string, meta map[string]any) {
		ident, err := s.Track(ctx, TrackParams{Type: t, RawValue: raw, Site: obs.Site, Metadata: meta})
		if err != nil {
			if s.log != nil {
				s.log.Warn("identifier extraction skipped one match", "type", string(t), "error", err.Error())
			}
			return
		}
		if ident != nil {
			tracked = append(tracked, *ident)
		}
	}

	for _, match := range dedupe(emailPattern.FindAllString(obs.Text, -1)) {
		record(repository.TypeEmail, match, nil)
	}
	for _, match := range dedupe(phonePattern.FindAllString(obs.Text, -1)) {
		// The regex is loose; only retain values that parse as real numbers.
		if !phone.IsValid(match, s.phoneRegion) {
			continue
		}
		record(repository.TypePhone, match, nil)
	}

	for name, value := range obs.Cookies {
		if value == "" || !isTrackingCookie(name) {
			continue
		}
		record(repository.TypeCookie, value, map[string]any{"cookie_name": name})
	}

	for key, value := range obs.Fields {
		if value == "" {
			continue
		}
		lower := strings.ToLower(key)
		switch {
		case lower == "user_id" || lower == "userid":
			record(repository.TypeUserID, value, map[string]any{"field": key})
		case lower == "fingerprint" || lower == "device_fingerprint":
			record(repository.TypeFingerprint, value, map[string]any{"field": key})
		case strings.HasSuffix(lower, "_id"):
			// Generic "*_id key" heuristic over structured payloads.
			record(repository.TypeTrackingID, value, map[string]any{"field": key})
		}
	}

	return tracked
}

func isTrackingCookie(name string) bool {
	if trackingCookies[name] {
		return true
	}
	for _, prefix := range trackingCookiePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
