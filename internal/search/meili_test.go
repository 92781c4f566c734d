package search

import (
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func TestStorySearchRequest(t *testing.T) {
	sr := storySearchRequest(Query{Text: "login", SessionID: "ses_1", Limit: 500, Offset: -3})
	if sr.IndexUID != idxStories || sr.Query != "login" {
		t.Fatalf("unexpected request %+v", sr)
	}
	if sr.Limit != 100 || sr.Offset != 0 {
		t.Errorf("expected clamped paging, got limit=%d offset=%d", sr.Limit, sr.Offset)
	}
	if sr.Filter != `sessionId = "ses_1"` {
		t.Errorf("unexpected filter %v", sr.Filter)
	}

	if sr := storySearchRequest(Query{Text: "x"}); sr.Filter != nil || sr.Limit != 20 {
		t.Errorf("expected default limit without filter, got %+v", sr)
	}
}

func TestHitToResultPrefersHighlights(t *testing.T) {
	hit := meili.Hit{
		"id":          json.RawMessage(`"st_1"`),
		"sessionCode": json.RawMessage(`"ABC234"`),
		"title":       json.RawMessage(`"Login page"`),
		"description": json.RawMessage(`"OAuth flow"`),
		"_formatted":  json.RawMessage(`{"title":"<mark>Login</mark> page","description":""}`),
	}
	got := hitToResult(hit)
	want := Result{ID: "st_1", SessionCode: "ABC234", Title: "<mark>Login</mark> page", Snippet: "OAuth flow"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
