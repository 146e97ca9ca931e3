package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cad-lingo/src/glossary"
)

type responsePayload struct {
	Items []Result `json:"items"`
}

// ParseResponse decodes the model's reply. Empty replies and replies without an
// "items" key yield an empty list. Prose or code fences around the JSON are ignored.
func ParseResponse(text string) ([]Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Result{}, nil
	}

	var items []Result
	var payload responsePayload
	switch {
	case json.Unmarshal([]byte(text), &payload) == nil:
		items = payload.Items
	case strings.HasPrefix(text, "[") && json.Unmarshal([]byte(text), &items) == nil:
	default:
		obj := extractJSONObject(text)
		if obj == "" {
			return nil, errors.New("no JSON object in model response")
		}
		if err := json.Unmarshal([]byte(obj), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode model response: %w", err)
		}
		items = payload.Items
	}

	out := make([]Result, 0, len(items))
	for _, r := range items {
		r.Original = strings.TrimSpace(r.Original)
		r.Translated = strings.TrimSpace(r.Translated)
		if r.Original == "" && r.Translated == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// extractJSONObject returns the first balanced {...} in s, skipping braces inside strings.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Reconcile marks results whose original text is a glossary term and fills in the
// glossary translation when the model left it blank.
func Reconcile(results []Result, entries []glossary.Entry) []Result {
	for i := range results {
		e, ok := glossary.Lookup(entries, results[i].Original)
		if !ok {
			continue
		}
		results[i].IsDictionaryMatch = true
		if results[i].Translated == "" {
			results[i].Translated = e.Translation
		}
	}
	return results
}

// translateLines is the offline path: every OCR line becomes a result, translated
// only when the glossary knows it.
func translateLines(text string, entries []glossary.Entry) []Result {
	seen := make(map[string]bool)
	out := []Result{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[strings.ToLower(line)] {
			continue
		}
		seen[strings.ToLower(line)] = true

		if e, ok := glossary.Lookup(entries, line); ok {
			out = append(out, Result{Original: line, Translated: e.Translation, IsDictionaryMatch: true, Confidence: "high"})
			continue
		}
		out = append(out, Result{Original: line, Translated: line, Confidence: "low"})
	}
	return out
}
