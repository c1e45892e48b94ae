package evidence

import (
	"testing"

	"github.com/ppiankov/aletheia/internal/model"
)

func intPtr(v int) *int { return &v }

func TestNormalizeScoresAndClamps(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.Normalize([]model.EvidenceInput{
		{URL: "https://www.who.int/news", Summary: " WHO statement "},
		{URL: "https://random-blog.net/post", Credibility: intPtr(250)},
		{URL: "https://random-blog.net/other", Credibility: intPtr(-4)},
	}, "")

	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0].Tier != model.TierPrimary || got[0].Credibility != 90 {
		t.Errorf("who.int scored %v/%d, want primary/90", got[0].Tier, got[0].Credibility)
	}
	if got[0].Summary != "WHO statement" {
		t.Errorf("summary not trimmed: %q", got[0].Summary)
	}
	if got[1].Credibility != 100 || got[2].Credibility != 0 {
		t.Errorf("credibility not clamped: %d, %d", got[1].Credibility, got[2].Credibility)
	}
	for _, ev := range got {
		if len(ev.ContentHash) != 64 {
			t.Errorf("expected sha256 hex hash, got %q", ev.ContentHash)
		}
	}
}

func TestNormalizeDedupesByHash(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.Normalize([]model.EvidenceInput{
		{URL: "https://example.com/a", Content: "same document"},
		{URL: "https://example.com/b", Content: "same document"},
		{URL: "https://example.com/c#section"},
		{URL: "https://EXAMPLE.com/c"},
	}, "")

	if len(got) != 2 {
		t.Fatalf("expected 2 unique items, got %d: %+v", len(got), got)
	}
	if got[0].SourceURL != "https://example.com/a" {
		t.Errorf("first occurrence should win, got %s", got[0].SourceURL)
	}
}

func TestNormalizeDropsUnusableInput(t *testing.T) {
	n := NewNormalizer(nil)
	got := n.Normalize([]model.EvidenceInput{
		{URL: "javascript:alert(1)"},
		{URL: "mailto:desk@example.com"},
		{URL: "  "},
	}, "")
	if len(got) != 0 {
		t.Errorf("expected nothing usable, got %+v", got)
	}
}

func TestNormalizeExtractsExplanationLinks(t *testing.T) {
	n := NewNormalizer(nil)
	explanation := `<p>See <a href="https://www.nature.com/articles/x">the paper</a>,
<a href="#note">note</a> and <a href="https://www.nature.com/articles/x">again</a>.</p>`

	got := n.Normalize([]model.EvidenceInput{{URL: "https://apnews.com/story"}}, explanation)
	if len(got) != 2 {
		t.Fatalf("expected submitted plus one extracted link, got %d", len(got))
	}
	if got[1].SourceURL != "https://www.nature.com/articles/x" {
		t.Errorf("unexpected extracted link %s", got[1].SourceURL)
	}
}

func TestExtractLinksPlainText(t *testing.T) {
	if links := ExtractLinks("No markup, just https://example.com in text"); len(links) != 0 {
		t.Errorf("plain text should yield no anchors, got %v", links)
	}
}

func TestDedupe(t *testing.T) {
	in := []model.Evidence{{ContentHash: "a"}, {ContentHash: "b"}, {ContentHash: "a"}}
	if got := Dedupe(in); len(got) != 2 {
		t.Errorf("expected 2, got %d", len(got))
	}
}
