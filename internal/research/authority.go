package research

import (
	"net/url"
	"strings"

	"github.com/sells-group/resolver-cli/internal/model"
)

// primarySuffixes are host suffixes for official sources: government,
// courts, regulators, academia, intergovernmental bodies.
var primarySuffixes = []string{
	".gov",
	".mil",
	".edu",
	".int",
	".gov.uk",
	".ac.uk",
	".gc.ca",
	".europa.eu",
}

// primaryHosts are official or standards-body hosts not covered by a suffix.
var primaryHosts = map[string]bool{
	"un.org":        true,
	"worldbank.org": true,
	"imf.org":       true,
	"oecd.org":      true,
	"iso.org":       true,
	"ietf.org":      true,
	"w3.org":        true,
	"icann.org":     true,
	"federalregister.gov": true,
	"courtlistener.com":   true,
}

// secondaryHosts are established press, exchanges, and encyclopedic sources.
var secondaryHosts = map[string]bool{
	"reuters.com":        true,
	"apnews.com":         true,
	"bbc.com":            true,
	"bbc.co.uk":          true,
	"nytimes.com":        true,
	"wsj.com":            true,
	"ft.com":             true,
	"bloomberg.com":      true,
	"economist.com":      true,
	"theguardian.com":    true,
	"washingtonpost.com": true,
	"npr.org":            true,
	"axios.com":          true,
	"politico.com":       true,
	"wikipedia.org":      true,
	"britannica.com":     true,
	"nature.com":         true,
	"science.org":        true,
	"nasdaq.com":         true,
	"nyse.com":           true,
}

// ClassifyAuthority maps a source URL to an authority tier. Unparseable or
// empty URLs are tertiary.
func ClassifyAuthority(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	host = strings.TrimPrefix(host, "www.")

	for _, suffix := range primarySuffixes {
		if strings.HasSuffix(host, suffix) || host == suffix[1:] {
			return model.TierPrimary
		}
	}
	if matchHost(host, primaryHosts) {
		return model.TierPrimary
	}
	if matchHost(host, secondaryHosts) {
		return model.TierSecondary
	}

	return model.TierTertiary
}

// matchHost reports whether host equals a known host or is a subdomain of one.
func matchHost(host string, known map[string]bool) bool {
	if known[host] {
		return true
	}
	for k := range known {
		if strings.HasSuffix(host, "."+k) {
			return true
		}
	}
	return false
}
