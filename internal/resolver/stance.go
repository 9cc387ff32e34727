package resolver

import (
	"strings"
	"unicode"

	"github.com/sells-group/resolver-cli/internal/model"
)

// Stance is an evidence item's position on the criteria's literal condition.
type Stance int

const (
	// StanceSilent means the item does not speak to the condition.
	StanceSilent Stance = iota
	// StanceAffirms means the item supports the condition having been met.
	StanceAffirms
	// StanceDenies means the item supports the condition not having been met.
	StanceDenies
)

func (s Stance) String() string {
	switch s {
	case StanceAffirms:
		return "affirms"
	case StanceDenies:
		return "denies"
	default:
		return "silent"
	}
}

// mootMarkers signal that the question became moot before its criteria could
// be evaluated: the underlying measure or entity was withdrawn, voided,
// annulled, or ceased to exist.
var mootMarkers = []string{
	"withdrawn",
	"voided",
	"annulled",
	"became moot",
	"ceased to exist",
	"question was cancelled",
	"question was canceled",
}

// denialCues mark negated or failed conditions. Cues are phrase-level; a
// bare "not" is too noisy to classify on.
var denialCues = []string{
	"did not", "didn't", "does not", "doesn't",
	"has not", "hasn't", "have not", "haven't",
	"was not", "wasn't", "were not", "weren't",
	"is not", "isn't", "are not", "aren't",
	"will not", "won't", "no longer", "never",
	"failed to", "fell short", "fell through",
	"denied", "rejected", "defeated", "vetoed",
	"called off", "ruled out", "missed the deadline",
}

var stanceStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "been": true, "being": true, "with": true, "from": true,
	"that": true, "this": true, "will": true, "would": true, "shall": true,
	"does": true, "did": true, "has": true, "have": true, "had": true,
	"its": true, "any": true, "all": true, "than": true, "then": true,
	"into": true, "onto": true, "over": true, "under": true, "upon": true,
	"before": true, "after": true, "between": true, "during": true,
	"question": true, "resolves": true, "resolve": true, "resolution": true,
	"criteria": true, "yes": true, "not": true,
}

// keyTerms extracts the criteria's content words: lowercase tokens of three
// or more characters, minus stopwords. These anchor relevance matching.
func keyTerms(criteria string) []string {
	fields := strings.FieldsFunc(strings.ToLower(criteria), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, w := range fields {
		if len(w) < 3 || stanceStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// relevantText reports whether lowered shares enough key terms with the
// criteria to speak to it. Short criteria need a single shared term; longer
// ones need two.
func relevantText(lowered string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	required := 2
	if len(terms) < 4 {
		required = 1
	}
	matched := 0
	for _, t := range terms {
		if strings.Contains(lowered, t) {
			matched++
			if matched >= required {
				return true
			}
		}
	}
	return false
}

// classify returns an item's stance on the criteria terms and whether it
// carries a mootness marker. Irrelevant items are silent and never moot; a
// moot item contributes no stance.
func classify(text string, terms []string) (Stance, bool) {
	lowered := strings.ToLower(text)
	if !relevantText(lowered, terms) {
		return StanceSilent, false
	}
	for _, m := range mootMarkers {
		if strings.Contains(lowered, m) {
			return StanceSilent, true
		}
	}
	for _, cue := range denialCues {
		if strings.Contains(lowered, cue) {
			return StanceDenies, false
		}
	}
	return StanceAffirms, false
}

// analysis summarizes the stances of a frozen evidence set. Index slices
// refer to positions in the analyzed item list, in collector order.
type analysis struct {
	affirming []int
	denying   []int
	moot      []int
}

// analyzeEvidence classifies every item against the criteria's key terms.
// Deterministic: the same criteria and items always produce the same result.
func analyzeEvidence(criteria string, items []model.EvidenceItem) analysis {
	terms := keyTerms(criteria)

	var a analysis
	for i, item := range items {
		stance, moot := classify(item.Text, terms)
		if moot {
			a.moot = append(a.moot, i)
			continue
		}
		switch stance {
		case StanceAffirms:
			a.affirming = append(a.affirming, i)
		case StanceDenies:
			a.denying = append(a.denying, i)
		}
	}
	return a
}

// tierOf normalizes an item's authority tier; anything outside the known
// range ranks tertiary.
func tierOf(item model.EvidenceItem) model.AuthorityTier {
	if item.Tier < model.TierPrimary || item.Tier > model.TierTertiary {
		return model.TierTertiary
	}
	return item.Tier
}

// betterEvidence orders items within one stance side: authority tier first,
// then published date (dated before undated, later first), then collector
// rank. Total over any pair, so a side always has one representative.
func betterEvidence(a, b model.EvidenceItem) bool {
	if ta, tb := tierOf(a), tierOf(b); ta != tb {
		return ta < tb
	}
	ad, bd := a.PublishedAt, b.PublishedAt
	switch {
	case ad != nil && bd == nil:
		return true
	case ad == nil && bd != nil:
		return false
	case ad != nil && bd != nil && !ad.Equal(*bd):
		return ad.After(*bd)
	}
	return a.Rank < b.Rank
}

// precedence compares the deciding items of two conflicting sides. Negative
// means a wins, positive means b wins, zero means neither authority tier nor
// date distinguishes them. Collector rank deliberately does not flip a
// verdict between sides.
func precedence(a, b model.EvidenceItem) int {
	if ta, tb := tierOf(a), tierOf(b); ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	ad, bd := a.PublishedAt, b.PublishedAt
	switch {
	case ad != nil && bd == nil:
		return -1
	case ad == nil && bd != nil:
		return 1
	case ad != nil && bd != nil:
		if ad.After(*bd) {
			return -1
		}
		if bd.After(*ad) {
			return 1
		}
	}
	return 0
}

// bestOf returns the highest-precedence item among idx. idx must be
// non-empty.
func bestOf(items []model.EvidenceItem, idx []int) model.EvidenceItem {
	best := items[idx[0]]
	for _, i := range idx[1:] {
		if betterEvidence(items[i], best) {
			best = items[i]
		}
	}
	return best
}
