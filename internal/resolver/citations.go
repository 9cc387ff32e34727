package resolver

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/resolver-cli/internal/model"
)

// normalizeQuote canonicalizes text for citation matching: Unicode NFC so
// composed and decomposed forms compare equal, then every whitespace run
// folded to a single space. Case and punctuation are preserved; a citation
// must be verbatim.
func normalizeQuote(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// verifyQuote returns the index of the first evidence item containing quote
// under normalization. Quotes that normalize to nothing never verify.
func verifyQuote(quote string, items []model.EvidenceItem) (int, bool) {
	nq := normalizeQuote(quote)
	if nq == "" {
		return 0, false
	}
	for i, item := range items {
		if strings.Contains(normalizeQuote(item.Text), nq) {
			return i, true
		}
	}
	return 0, false
}

// verifyQuotes maps proposed quotes onto citations backed by the evidence
// set, preserving proposal order. Unverifiable quotes are returned
// separately so the caller can log the rejection.
func verifyQuotes(quotes []string, items []model.EvidenceItem) (cits []model.Citation, rejected []string) {
	for _, q := range quotes {
		idx, ok := verifyQuote(q, items)
		if !ok {
			rejected = append(rejected, q)
			continue
		}
		item := items[idx]
		cits = append(cits, model.Citation{
			Quote:     strings.TrimSpace(q),
			SourceURL: item.SourceURL,
			Title:     item.Title,
			Rank:      item.Rank,
		})
	}
	return cits, rejected
}

// citeItem turns a deciding evidence item into a citation quoting its whole
// snippet. A snippet is trivially a verbatim substring of itself.
func citeItem(item model.EvidenceItem) model.Citation {
	return model.Citation{
		Quote:     strings.TrimSpace(item.Text),
		SourceURL: item.SourceURL,
		Title:     item.Title,
		Rank:      item.Rank,
	}
}
