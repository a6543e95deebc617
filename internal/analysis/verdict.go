package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Verdict is the structured per-chunk classifier result. Providers are
// instructed to answer with a JSON object; free text only carries the
// rationale payload.
type Verdict struct {
	Flagged    bool
	ItemNumber string
	Title      string
	Rationale  string
}

const (
	sentinelClean   = "no items were flagged"
	sentinelFlagged = "urgent action required"
)

var itemNumberPattern = regexp.MustCompile(`(?i)\bItem\s+(\d+(?:\.\d+)?)`)

// ParseVerdict decodes a classifier response. Strict JSON is tried first; a
// model that drifts back into prose is salvaged via the legacy sentinel
// phrases, with neither sentinel reading as not-flagged.
func ParseVerdict(text string) Verdict {
	raw := stripCodeFence(text)
	var decoded struct {
		Verdict    string `json:"verdict"`
		ItemNumber string `json:"item_number"`
		Title      string `json:"title"`
		Rationale  string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil && decoded.Verdict != "" {
		if strings.EqualFold(decoded.Verdict, "flagged") {
			item := decoded.ItemNumber
			if item == "" {
				item = ExtractItemNumber(decoded.Rationale)
			}
			return Verdict{Flagged: true, ItemNumber: item, Title: decoded.Title, Rationale: decoded.Rationale}
		}
		return Verdict{}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, sentinelFlagged) && !strings.Contains(lower, sentinelClean) {
		return Verdict{Flagged: true, ItemNumber: ExtractItemNumber(text), Rationale: strings.TrimSpace(text)}
	}
	return Verdict{}
}

// ExtractItemNumber pulls the first agenda item token in the style "Item 6.5"
// out of free text. Alternate numbering schemes (e.g. "Section 6(b)") are not
// recognized; findings without a token dedup as singletons.
func ExtractItemNumber(text string) string {
	m := itemNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
