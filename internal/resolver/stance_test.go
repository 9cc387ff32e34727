package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolver-cli/internal/model"
)

func TestKeyTerms_DropsStopwordsAndDuplicates(t *testing.T) {
	t.Parallel()

	terms := keyTerms("The treaty is ratified by the assembly before 2024-07-01, and the treaty enters force.")

	assert.Contains(t, terms, "treaty")
	assert.Contains(t, terms, "ratified")
	assert.Contains(t, terms, "assembly")
	assert.Contains(t, terms, "2024")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "before")
	assert.NotContains(t, terms, "and")

	count := 0
	for _, term := range terms {
		if term == "treaty" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	terms := keyTerms("The merger between Acme and Globex closes before 2025-03-01.")

	tests := []struct {
		name   string
		text   string
		stance Stance
		moot   bool
	}{
		{
			name:   "affirming",
			text:   "Acme announced the merger with Globex closed on February 12, 2025.",
			stance: StanceAffirms,
		},
		{
			name:   "denying",
			text:   "The Acme-Globex merger did not close; regulators blocked the deal.",
			stance: StanceDenies,
		},
		{
			name:   "irrelevant is silent",
			text:   "Quarterly smartphone shipments rose four percent.",
			stance: StanceSilent,
		},
		{
			name: "moot",
			text: "The Acme-Globex merger agreement was withdrawn in January.",
			moot: true,
		},
		{
			name:   "denial cue on irrelevant text stays silent",
			text:   "The stadium project did not break ground this year.",
			stance: StanceSilent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stance, moot := classify(tt.text, terms)
			assert.Equal(t, tt.moot, moot)
			if !tt.moot {
				assert.Equal(t, tt.stance, stance)
			}
		})
	}
}

func TestAnalyzeEvidence_PreservesCollectorOrder(t *testing.T) {
	t.Parallel()

	items := []model.EvidenceItem{
		{Text: "Parliament ratified the treaty on 12 June 2024.", Rank: 0},
		{Text: "The treaty was not ratified; the final vote failed to reach quorum.", Rank: 1},
		{Text: "Unrelated market commentary.", Rank: 2},
		{Text: "Officials confirmed the treaty was ratified ahead of the deadline.", Rank: 3},
	}

	an := analyzeEvidence("The treaty is ratified before 2024-07-01.", items)

	assert.Equal(t, []int{0, 3}, an.affirming)
	assert.Equal(t, []int{1}, an.denying)
	assert.Empty(t, an.moot)
}

func TestBetterEvidence(t *testing.T) {
	t.Parallel()

	june := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	july := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

	primary := model.EvidenceItem{Tier: model.TierPrimary, Rank: 5}
	secondary := model.EvidenceItem{Tier: model.TierSecondary, Rank: 0}
	datedJune := model.EvidenceItem{Tier: model.TierSecondary, PublishedAt: &june, Rank: 3}
	datedJuly := model.EvidenceItem{Tier: model.TierSecondary, PublishedAt: &july, Rank: 4}
	undatedRank1 := model.EvidenceItem{Tier: model.TierSecondary, Rank: 1}

	assert.True(t, betterEvidence(primary, secondary), "lower tier wins regardless of rank")
	assert.False(t, betterEvidence(secondary, primary))
	assert.True(t, betterEvidence(datedJuly, datedJune), "later date wins within a tier")
	assert.True(t, betterEvidence(datedJune, undatedRank1), "dated beats undated")
	assert.True(t, betterEvidence(secondary, undatedRank1), "rank breaks full ties")
}

func TestBetterEvidence_UnknownTierRanksTertiary(t *testing.T) {
	t.Parallel()

	unset := model.EvidenceItem{Rank: 0}
	tertiary := model.EvidenceItem{Tier: model.TierTertiary, Rank: 1}
	secondary := model.EvidenceItem{Tier: model.TierSecondary, Rank: 9}

	assert.True(t, betterEvidence(secondary, unset))
	assert.True(t, betterEvidence(unset, tertiary), "equal effective tier falls to rank")
}

func TestPrecedence(t *testing.T) {
	t.Parallel()

	june := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	july := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b model.EvidenceItem
		want int
	}{
		{
			name: "tier decides",
			a:    model.EvidenceItem{Tier: model.TierPrimary},
			b:    model.EvidenceItem{Tier: model.TierSecondary},
			want: -1,
		},
		{
			name: "later date decides within tier",
			a:    model.EvidenceItem{Tier: model.TierSecondary, PublishedAt: &june},
			b:    model.EvidenceItem{Tier: model.TierSecondary, PublishedAt: &july},
			want: 1,
		},
		{
			name: "dated beats undated",
			a:    model.EvidenceItem{Tier: model.TierSecondary, PublishedAt: &june},
			b:    model.EvidenceItem{Tier: model.TierSecondary},
			want: -1,
		},
		{
			name: "equal tier undated is indistinct",
			a:    model.EvidenceItem{Tier: model.TierSecondary, Rank: 0},
			b:    model.EvidenceItem{Tier: model.TierSecondary, Rank: 1},
			want: 0,
		},
		{
			name: "equal tier equal date is indistinct",
			a:    model.EvidenceItem{Tier: model.TierPrimary, PublishedAt: &june},
			b:    model.EvidenceItem{Tier: model.TierPrimary, PublishedAt: &june},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, precedence(tt.a, tt.b))
		})
	}
}

func TestBestOf(t *testing.T) {
	t.Parallel()

	items := []model.EvidenceItem{
		{Text: "tertiary blog", Tier: model.TierTertiary, Rank: 0},
		{Text: "official register", Tier: model.TierPrimary, Rank: 1},
		{Text: "press coverage", Tier: model.TierSecondary, Rank: 2},
	}

	best := bestOf(items, []int{0, 1, 2})
	require.Equal(t, "official register", best.Text)
}
