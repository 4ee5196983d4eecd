package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/shirabe/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "cats",
		Total:     2,
		QueryTime: 3,
		Results: []*models.QueryResult{
			{
				DocID: "cats", Title: "cats.txt", Score: 0.98, Rank: 1,
				Preview: "cats are great pets",
				Explanation: &models.Explanation{
					OverlapTerms: []string{"cats"},
					OverlapRatio: 1.0,
					DocTerms:     4,
				},
			},
			{
				DocID: "dogs", Score: 0.41, Rank: 2,
				Explanation: &models.Explanation{OverlapTerms: []string{}},
			},
		},
	}
}

func TestWriteSearchResultsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "cats.txt", "Rank: 1", "Matched terms: cats", "cats are great pets"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "ID: dogs") {
		t.Errorf("second result missing:\n%s", out)
	}
}

func TestWriteSearchResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 2 || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Results[0].Explanation.OverlapRatio != 1.0 {
		t.Errorf("explanation lost in JSON round trip")
	}
}
