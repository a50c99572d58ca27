package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxMessageLength = 200

// field names backends commonly put their error text under
var messageFields = map[string]bool{
	"message": true,
	"error":   true,
	"detail":  true,
	"details": true,
	"reason":  true,
	"title":   true,
}

// substrings that indicate leaked backend internals rather than a message
// meant for the user
var leakMarkers = []string{
	"traceback",
	"exception",
	"stack trace",
	"stacktrace",
	"sql",
	"<html",
	"<!doctype",
	"panic:",
	"goroutine",
}

func looksLeaky(candidate string) bool {
	lowered := strings.ToLower(candidate)
	for _, marker := range leakMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// extractMessage does a best effort search of a JSON error body for a short
// human-readable message. Nested objects and arrays are flattened with their
// path as a prefix, the shortest safe candidate wins.
func extractMessage(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", false
	}
	candidates := []string{}
	collectCandidates(decoded, "", &candidates)
	best := ""
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || len(candidate) > maxMessageLength || looksLeaky(candidate) {
			continue
		}
		if best == "" || len(candidate) < len(best) {
			best = candidate
		}
	}
	return best, best != ""
}

func collectCandidates(value any, path string, out *[]string) {
	switch typed := value.(type) {
	case string:
		if path == "" {
			*out = append(*out, typed)
		} else {
			*out = append(*out, fmt.Sprintf("%s: %s", path, typed))
		}
	case map[string]any:
		for key, child := range typed {
			if childString, isString := child.(string); isString {
				// direct hits on well known message fields are used as-is,
				// other string fields are ignored
				if messageFields[strings.ToLower(key)] {
					*out = append(*out, childString)
				}
				continue
			}
			collectCandidates(child, joinPath(path, key), out)
		}
	case []any:
		for i, child := range typed {
			collectCandidates(child, joinPath(path, fmt.Sprintf("%d", i)), out)
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
