// Package evidence turns reviewer-supplied sources into normalized
// Evidence, checks that evidence links still resolve, and fetches advisory
// suggestions from a retrieval service.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/aletheia/internal/model"
)

// Normalizer hashes, scores and de-duplicates evidence
type Normalizer struct {
	authority *AuthorityClassifier
}

// NewNormalizer creates a normalizer; nil uses the default authority tiers
func NewNormalizer(authority *AuthorityClassifier) *Normalizer {
	if authority == nil {
		authority = NewAuthorityClassifier(nil)
	}
	return &Normalizer{authority: authority}
}

// Normalize converts submitted evidence plus any links found in an HTML
// explanation into Evidence. Entries are keyed by content hash; the first
// occurrence wins. Inputs without a usable http(s) URL or content are dropped.
func (n *Normalizer) Normalize(inputs []model.EvidenceInput, explanation string) []model.Evidence {
	seen := make(map[string]bool)
	var out []model.Evidence

	add := func(ev model.Evidence) {
		if seen[ev.ContentHash] {
			return
		}
		seen[ev.ContentHash] = true
		out = append(out, ev)
	}

	for _, in := range inputs {
		ev, ok := n.normalizeOne(in)
		if ok {
			add(ev)
		}
	}
	for _, link := range ExtractLinks(explanation) {
		ev, ok := n.normalizeOne(model.EvidenceInput{URL: link})
		if ok {
			add(ev)
		}
	}
	return out
}

func (n *Normalizer) normalizeOne(in model.EvidenceInput) (model.Evidence, bool) {
	link := canonicalURL(in.URL)
	content := strings.TrimSpace(in.Content)
	if link == "" && content == "" {
		return model.Evidence{}, false
	}

	ev := model.Evidence{
		SourceURL: link,
		Summary:   strings.TrimSpace(in.Summary),
	}
	if content != "" {
		ev.ContentHash = Hash(content)
	} else {
		ev.ContentHash = Hash(link)
	}

	ev.Tier = model.TierUnknown
	if link != "" {
		ev.Tier = n.authority.Classify(link)
	}
	if in.Credibility != nil {
		ev.Credibility = model.ClampCredibility(*in.Credibility)
	} else {
		ev.Credibility = ev.Tier.BaseCredibility()
	}
	return ev, true
}

// Hash returns the hex sha256 of s, the evidence dedup key
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Dedupe drops evidence whose hash was already seen, keeping order
func Dedupe(evidence []model.Evidence) []model.Evidence {
	seen := make(map[string]bool)
	var unique []model.Evidence
	for _, ev := range evidence {
		if !seen[ev.ContentHash] {
			seen[ev.ContentHash] = true
			unique = append(unique, ev)
		}
	}
	return unique
}

// canonicalURL returns an absolute http(s) URL without fragment, or ""
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String()
}

// ExtractLinks returns the absolute http(s) anchors in an HTML fragment,
// de-duplicated in document order. Plain text yields nothing.
func ExtractLinks(fragment string) []string {
	if !strings.Contains(fragment, "<") {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				// Anchors, javascript: and mailto: links are not sources
				if href == "" || strings.HasPrefix(href, "#") {
					continue
				}
				if link := canonicalURL(href); link != "" && !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}
