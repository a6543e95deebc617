package util

import "strings"

// SplitSections splits agenda text into chunks of at most budget characters,
// breaking only on blank-line paragraph boundaries so no agenda item is cut
// mid-sentence. A single section longer than the budget is emitted as its own
// oversized chunk rather than split further. Chunk order matches source
// order; page estimation and consolidation both depend on that.
func SplitSections(text string, budget int) []string {
	if budget <= 0 {
		budget = 40000
	}
	sections := strings.Split(text, "\n\n")
	chunks := make([]string, 0, len(text)/budget+1)
	var current strings.Builder
	for _, section := range sections {
		if current.Len() > 0 && current.Len()+len(section)+2 > budget {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(section)
		current.WriteString("\n\n")
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
