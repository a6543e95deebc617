package analysis

import (
	"context"
	"fmt"
	"strings"
)

// Finding is the raw per-chunk classifier output. It lives only until
// consolidation; a classification failure is recorded as a finding with Err
// set so the document degrades to partial coverage instead of aborting.
type Finding struct {
	ChunkIndex int    `json:"chunk_index"`
	Page       int    `json:"page"`
	Flagged    bool   `json:"flagged"`
	ItemNumber string `json:"item_number,omitempty"`
	Title      string `json:"title,omitempty"`
	Rationale  string `json:"rationale,omitempty"`
	Err        string `json:"error,omitempty"`
}

type ChunkSubmission struct {
	Municipality    string
	PropertyContext string
	Criteria        string
	ChunkText       string
	ChunkIndex      int
	TotalChunks     int
	Page            int
}

const classifierSystemPrompt = `You are a legal analyst reviewing municipal meeting agendas on behalf of monitored properties. You receive the lawyer-provided flagging criteria, one part of an agenda document, and context on the monitored properties. Judge every agenda item in the part strictly against the criteria.

Respond with a single JSON object and nothing else:
{"verdict":"flagged","item_number":"<agenda item number such as 6.5, empty if none>","title":"<short item title>","rationale":"<URGENT ACTION REQUIRED: ... concise impact, timeline and recommended action>"}
or, when nothing in this part meets the criteria:
{"verdict":"clean"}`

// Classifier builds per-chunk submissions and parses verdicts.
type Classifier struct {
	client         *Client
	criteriaBudget int
}

func NewClassifier(client *Client, criteriaBudget int) *Classifier {
	if criteriaBudget <= 0 {
		criteriaBudget = 15000
	}
	return &Classifier{client: client, criteriaBudget: criteriaBudget}
}

// ClassifyChunk submits one chunk and returns its finding. Errors never
// propagate; they are recorded on the finding and counted as degraded
// coverage by the caller.
func (c *Classifier) ClassifyChunk(ctx context.Context, sub ChunkSubmission) Finding {
	finding := Finding{ChunkIndex: sub.ChunkIndex, Page: sub.Page}
	prompt := c.buildPrompt(sub)
	text, _, err := c.client.Submit(ctx, "classify_chunk", classifierSystemPrompt, prompt)
	if err != nil {
		finding.Err = err.Error()
		return finding
	}
	v := ParseVerdict(text)
	finding.Flagged = v.Flagged
	finding.ItemNumber = v.ItemNumber
	finding.Title = v.Title
	finding.Rationale = v.Rationale
	return finding
}

func (c *Classifier) buildPrompt(sub ChunkSubmission) string {
	criteria := sub.Criteria
	if len(criteria) > c.criteriaBudget {
		criteria = criteria[:c.criteriaBudget] + "\n\n[truncated]"
	}
	b := strings.Builder{}
	b.WriteString("FLAGGING CRITERIA (lawyer-provided, primary guide):\n")
	b.WriteString(criteria)
	b.WriteString("\n\nMONITORED PROPERTY CONTEXT:\n")
	b.WriteString(sub.PropertyContext)
	fmt.Fprintf(&b, "\n\nMUNICIPAL AGENDA DOCUMENT for %s (part %d/%d):\n", sub.Municipality, sub.ChunkIndex+1, sub.TotalChunks)
	b.WriteString(sub.ChunkText)
	return b.String()
}
