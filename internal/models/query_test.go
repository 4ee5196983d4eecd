package models

import "testing"

func TestSearchQuery_Validate(t *testing.T) {
	q := &SearchQuery{Query: "cats", TopK: 0}
	if err := q.Validate(10, 100); err != nil {
		t.Fatal(err)
	}
	if q.TopK != 10 {
		t.Errorf("default TopK = %d, want 10", q.TopK)
	}

	q = &SearchQuery{Query: "cats", TopK: 5000}
	if err := q.Validate(10, 100); err != nil {
		t.Fatal(err)
	}
	if q.TopK != 100 {
		t.Errorf("capped TopK = %d, want 100", q.TopK)
	}
}

func TestSearchQuery_ValidateRejects(t *testing.T) {
	if err := (&SearchQuery{Query: ""}).Validate(10, 100); err == nil {
		t.Error("empty query accepted")
	}
	if err := (&SearchQuery{Query: "x", TopK: -1}).Validate(10, 100); err == nil {
		t.Error("negative top_k accepted")
	}
}
