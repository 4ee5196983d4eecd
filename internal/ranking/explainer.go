// Package ranking annotates ranked results with interpretable signals.
// Explanations are display-only: they never alter score or rank order, and
// a failure to compute one degrades to an empty explanation rather than
// failing the query.
package ranking

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/pkg/utils"
)

// Explainer computes lexical-overlap explanations and previews.
type Explainer struct {
	maxTerms      int
	previewLength int
}

// NewExplainer creates an explainer. maxTerms bounds how many overlapping
// terms are reported; previewLength bounds the preview in runes.
func NewExplainer(maxTerms, previewLength int) *Explainer {
	if maxTerms <= 0 {
		maxTerms = 5
	}
	if previewLength <= 0 {
		previewLength = 150
	}
	return &Explainer{maxTerms: maxTerms, previewLength: previewLength}
}

// Explain returns the lexical overlap between query and document text.
// Missing document text yields an empty explanation.
func (e *Explainer) Explain(queryText, docText string) *models.Explanation {
	queryTerms := termSet(Tokenize(queryText))
	docTokens := Tokenize(docText)
	docTerms := termSet(docTokens)

	overlap := make([]string, 0, len(queryTerms))
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			overlap = append(overlap, term)
		}
	}
	sort.Strings(overlap)
	if len(overlap) > e.maxTerms {
		overlap = overlap[:e.maxTerms]
	}

	ratio := 0.0
	if len(queryTerms) > 0 {
		var matched int
		for term := range queryTerms {
			if _, ok := docTerms[term]; ok {
				matched++
			}
		}
		ratio = float64(matched) / float64(len(queryTerms))
	}

	return &models.Explanation{
		OverlapTerms: overlap,
		OverlapRatio: ratio,
		DocTerms:     len(docTokens),
	}
}

// Preview returns the leading slice of docText for display.
func (e *Explainer) Preview(docText string) string {
	return utils.Truncate(strings.TrimSpace(docText), e.previewLength)
}

// Tokenize lowercases text and splits it into terms of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
