package util

import "math"

// DefaultCharsPerPage is a rough average for extracted PDF text.
const DefaultCharsPerPage = 3000

// EstimatePage maps a chunk index back to an approximate source page for
// operator navigation. This is a proportional estimate, not a byte-exact
// mapping; true page mapping needs layout-aware extraction.
func EstimatePage(chunkIndex, totalChunks, fullTextLen, charsPerPage int) int {
	if charsPerPage <= 0 {
		charsPerPage = DefaultCharsPerPage
	}
	if totalChunks <= 0 {
		return 1
	}
	totalPages := fullTextLen / charsPerPage
	if totalPages < 1 {
		totalPages = 1
	}
	page := int(math.Round(float64(chunkIndex+1) / float64(totalChunks) * float64(totalPages)))
	if page < 1 {
		page = 1
	}
	return page
}
