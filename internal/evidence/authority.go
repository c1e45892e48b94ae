package evidence

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/aletheia/internal/model"
)

// AuthorityClassifier sorts evidence sources into authority tiers
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primaryMap   map[string]bool
	secondaryMap map[string]bool
}

// NewAuthorityClassifier creates a classifier from config; nil uses the defaults
func NewAuthorityClassifier(cfg *model.AuthorityConfig) *AuthorityClassifier {
	if cfg == nil {
		def := model.DefaultConfig().Authority
		cfg = &def
	}

	a := &AuthorityClassifier{
		domainMap:    make(map[string]model.AuthorityTier),
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}
	for domain, tier := range cfg.DomainMap {
		a.domainMap[strings.ToLower(domain)] = parseTier(tier)
	}
	for _, domain := range cfg.PrimaryDomains {
		a.primaryMap[strings.ToLower(domain)] = true
	}
	for _, domain := range cfg.SecondaryDomains {
		a.secondaryMap[strings.ToLower(domain)] = true
	}
	return a
}

// Classify returns the authority tier of a URL. Unparseable URLs are tertiary.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}
	host := strings.ToLower(parsed.Hostname())

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	// Exact host, its registrable domain, then every parent suffix
	// (foo.nhs.gov.uk matches gov.uk).
	if site := RegistrableDomain(host); site != host {
		if tier, ok := a.domainMap[site]; ok {
			return tier
		}
	}
	if matchesSuffix(host, a.primaryMap) {
		return model.TierPrimary
	}
	if matchesSuffix(host, a.secondaryMap) {
		return model.TierSecondary
	}

	// Public suffixes that usually signal an institution
	suffix, _ := publicsuffix.PublicSuffix(host)
	switch {
	case suffix == "gov" || suffix == "edu" || suffix == "mil":
		return model.TierPrimary
	case strings.HasPrefix(suffix, "gov.") || strings.HasPrefix(suffix, "ac.") || strings.HasPrefix(suffix, "edu."):
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Credibility returns the default credibility score for a URL
func (a *AuthorityClassifier) Credibility(rawURL string) int {
	return a.Classify(rawURL).BaseCredibility()
}

// RegistrableDomain returns the eTLD+1 for host, or host itself for IPs,
// single-label hosts and unknown suffixes
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

func matchesSuffix(host string, domains map[string]bool) bool {
	for h := host; h != ""; {
		if domains[h] {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			return false
		}
		h = h[i+1:]
	}
	return false
}

func parseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
