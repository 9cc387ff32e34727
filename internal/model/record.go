package model

import "time"

// AuthorityTier ranks the trustworthiness of an evidence source.
type AuthorityTier int

const (
	// TierPrimary is an official or first-party source: government,
	// regulator, court, standards body, or the entity the criteria name.
	TierPrimary AuthorityTier = iota + 1
	// TierSecondary is established press or reference coverage.
	TierSecondary
	// TierTertiary is everything else: blogs, forums, aggregators.
	TierTertiary
)

// String returns a short human-readable tier name.
func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// EvidenceItem is one retrieved snippet with source attribution. Rank is the
// order of appearance from the collector (0 = most relevant). Items live only
// for the resolver invocation that requested them; what survives is whatever
// the resulting record cites.
type EvidenceItem struct {
	Text        string        `json:"text"`
	SourceURL   string        `json:"source_url,omitempty"`
	Title       string        `json:"title,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	Rank        int           `json:"rank"`
	Tier        AuthorityTier `json:"tier,omitempty"`
}

// Citation is a verbatim quote from a collected evidence item, carrying the
// attribution of the item it quotes.
type Citation struct {
	Quote     string `json:"quote"`
	SourceURL string `json:"source_url,omitempty"`
	Title     string `json:"title,omitempty"`
	Rank      int    `json:"rank"`
}

// ResolutionRecord is the resolver's verdict for one question. Created once
// per question per run and immutable after creation. TRUE and FALSE verdicts
// always carry at least one citation.
type ResolutionRecord struct {
	Question   Question   `json:"question"`
	Predicted  Label      `json:"predicted"`
	Rationale  string     `json:"rationale"`
	Citations  []Citation `json:"citations,omitempty"`
	TokenUsage TokenUsage `json:"token_usage"`
	CostUSD    float64    `json:"cost_usd"`
	Duration   int64      `json:"duration_ms"`
}

// Outcome pairs a resolution record with the ground truth it is scored
// against. The report builder consumes outcomes in input order.
type Outcome struct {
	Record ResolutionRecord `json:"record"`
	Actual Label            `json:"actual"`
}

// Correct reports whether the record's prediction matches the ground truth.
func (o Outcome) Correct() bool {
	return IsCorrect(o.Actual, o.Record.Predicted)
}

// ItemFailure records a batch item that failed structural validation. The
// rest of the run proceeds; failures are reported separately.
type ItemFailure struct {
	Index      int    `json:"index"`
	QuestionID string `json:"question_id,omitempty"`
	Reason     string `json:"reason"`
}
