package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// NoItemsFlagged is the literal returned for a fully analyzed document with
// zero findings. It distinguishes "checked, clean" from "never checked".
const NoItemsFlagged = "No items were flagged in this agenda."

// ConsolidatedAlert is one unique flagged agenda item across the whole
// document, the unit that gets persisted as an Alert.
type ConsolidatedAlert struct {
	Title        string  `json:"title"`
	Rationale    string  `json:"rationale"`
	ItemNumber   string  `json:"item_number,omitempty"`
	PrimaryPage  int     `json:"primary_page"`
	Relevance    float64 `json:"relevance"`
	SourceChunks []int   `json:"source_chunks"`
}

type findingGroup struct {
	key     string
	members []Finding
}

const findingSeparator = "\n\n---FINDING---\n\n"

const consolidationSystemPrompt = `You are an expert legal analyst consolidating findings from different parts of one municipal agenda document. Merge duplicate or overlapping descriptions of the same agenda item into a single concise statement (2-3 sentences), keep specific item numbers, and maintain the URGENT ACTION REQUIRED framing.`

// groupFindings buckets flagged findings by item-number key, first-seen order
// preserved across chunks. Findings without an extractable item number are
// their own singleton groups.
func groupFindings(findings []Finding) []findingGroup {
	groups := make([]findingGroup, 0, len(findings))
	index := map[string]int{}
	for _, f := range findings {
		if !f.Flagged {
			continue
		}
		key := f.ItemNumber
		if key == "" {
			key = ExtractItemNumber(f.Rationale)
		}
		if key == "" {
			key = fmt.Sprintf("chunk-%d-singleton", f.ChunkIndex)
		}
		if i, ok := index[key]; ok {
			groups[i].members = append(groups[i].members, f)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, findingGroup{key: key, members: []Finding{f}})
	}
	return groups
}

// Consolidate merges flagged findings into at most one alert per distinct
// item number. Singleton groups pass through unchanged. Multi-member groups
// go through one merge call to the analysis service; if that fails or returns
// too little content, the longest member rationale stands in (length
// approximates completeness), which keeps reruns deterministic.
func Consolidate(ctx context.Context, client *Client, findings []Finding) []ConsolidatedAlert {
	groups := groupFindings(findings)
	alerts := make([]ConsolidatedAlert, 0, len(groups))
	for _, g := range groups {
		rationale := ""
		if len(g.members) == 1 {
			rationale = g.members[0].Rationale
		} else {
			rationale = mergeGroup(ctx, client, g)
		}
		alerts = append(alerts, buildAlert(g, rationale))
	}
	return alerts
}

// ConsolidateLocal is the pure fallback path: no service calls, same grouping,
// longest rationale per group. Running it twice over the same findings yields
// identical output.
func ConsolidateLocal(findings []Finding) []ConsolidatedAlert {
	groups := groupFindings(findings)
	alerts := make([]ConsolidatedAlert, 0, len(groups))
	for _, g := range groups {
		alerts = append(alerts, buildAlert(g, longestRationale(g.members)))
	}
	return alerts
}

func mergeGroup(ctx context.Context, client *Client, g findingGroup) string {
	if client == nil {
		return longestRationale(g.members)
	}
	parts := make([]string, 0, len(g.members))
	for _, m := range g.members {
		parts = append(parts, m.Rationale)
	}
	prompt := fmt.Sprintf("FINDINGS TO CONSOLIDATE (all describe agenda item %s):%s%s", g.key, findingSeparator, strings.Join(parts, findingSeparator))
	merged, _, err := client.Submit(ctx, "consolidate_findings", consolidationSystemPrompt, prompt)
	if err != nil || len(strings.TrimSpace(merged)) < 100 {
		return longestRationale(g.members)
	}
	return strings.TrimSpace(merged)
}

func buildAlert(g findingGroup, rationale string) ConsolidatedAlert {
	chunks := make([]int, 0, len(g.members))
	for _, m := range g.members {
		chunks = append(chunks, m.ChunkIndex)
	}
	sort.Ints(chunks)
	first := g.members[0]
	item := first.ItemNumber
	if item == "" {
		item = ExtractItemNumber(first.Rationale)
	}
	title := first.Title
	if title == "" {
		if item != "" {
			title = "Agenda Item " + item
		} else {
			title = "Flagged agenda item"
		}
	}
	// Repeat mentions across chunks raise confidence that the item is real
	// rather than a boundary artifact.
	relevance := 0.7 + 0.1*float64(len(g.members)-1)
	if relevance > 1.0 {
		relevance = 1.0
	}
	return ConsolidatedAlert{
		Title:        title,
		Rationale:    rationale,
		ItemNumber:   item,
		PrimaryPage:  first.Page,
		Relevance:    relevance,
		SourceChunks: chunks,
	}
}

func longestRationale(members []Finding) string {
	longest := ""
	for _, m := range members {
		if len(m.Rationale) > len(longest) {
			longest = m.Rationale
		}
	}
	return strings.TrimSpace(longest)
}

// Summary renders the consolidated alert set as the operator-facing analysis
// text, or the explicit clean sentinel when nothing was flagged.
func Summary(alerts []ConsolidatedAlert) string {
	if len(alerts) == 0 {
		return NoItemsFlagged
	}
	parts := make([]string, 0, len(alerts))
	for _, a := range alerts {
		parts = append(parts, fmt.Sprintf("%s [Page %d]", a.Rationale, a.PrimaryPage))
	}
	return strings.Join(parts, "\n\n")
}
