package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSEOAnswers() AnswerSet {
	a := NewAnswerSet()
	a.Set(QLocalRanking, "Top 3")
	a.Set(QOrganicTraffic, "Growing")
	a.SetMulti(QActionStats, "GA4", "GSC", "GBP")
	a.Set(QCTAVisibility, "Yes – both mobile & desktop")
	a.Set(QServicePages, "Yes")
	a.Set(QLeadSystem, "Dedicated CRM")
	a.Set(QResponseTime, "Within 5 minutes")
	return a
}

func TestSEOScorer_PerfectAnswers(t *testing.T) {
	scores := SEOScorer{}.Score(fullSEOAnswers())

	assert.Equal(t, 100, scores.Traffic, "three tracking tools earn the full 4")
	assert.Equal(t, 100, scores.Conversion)
	assert.Equal(t, 100, scores.LeadManagement)
	assert.Equal(t, 100, scores.Overall)
}

func TestSEOScorer_ActionStatsNoneDominates(t *testing.T) {
	a := fullSEOAnswers()
	a.SetMulti(QActionStats, "GA4", ActionStatsNone, "GSC")

	scores := SEOScorer{}.Score(a)
	// 4+4+0 of 12: the multi-select contributes nothing once "None of the
	// above" appears, regardless of the other selections.
	assert.Equal(t, 67, scores.Traffic)
}

func TestSEOScorer_ActionStatsPartialCredit(t *testing.T) {
	a := NewAnswerSet()
	a.SetMulti(QActionStats, "GA4", "GSC")

	scores := SEOScorer{}.Score(a)
	// 2 * 4/3 points against the multi-select's own 4-point slot: 67%.
	assert.Equal(t, 67, scores.Traffic)
}

func TestSEOScorer_ActionStatsSingleTool(t *testing.T) {
	a := NewAnswerSet()
	a.SetMulti(QActionStats, "GBP")

	scores := SEOScorer{}.Score(a)
	// 4/3 of 4 points: 33%.
	assert.Equal(t, 33, scores.Traffic)
}

// The SEO traffic denominator only counts questions with a recognized
// answer (plus the always-present action-stats slot), so a bogus option
// disappears from the calculation instead of dragging the score down.
func TestSEOScorer_DynamicDenominator(t *testing.T) {
	a := NewAnswerSet()
	a.Set(QLocalRanking, "not a real option")
	a.Set(QOrganicTraffic, "Growing")

	scores := SEOScorer{}.Score(a)
	// Growing (4) over 4+4 (organic traffic + action-stats slot): 50.
	assert.Equal(t, 50, scores.Traffic)
}

func TestSEOScorer_ConversionDynamicLeadFixed(t *testing.T) {
	a := NewAnswerSet()
	a.Set(QCTAVisibility, "bogus")
	a.Set(QServicePages, "Yes")
	a.Set(QLeadSystem, "bogus")
	a.Set(QResponseTime, "Within 5 minutes")

	scores := SEOScorer{}.Score(a)
	assert.Equal(t, 100, scores.Conversion, "unrecognized answer drops out of the denominator")
	assert.Equal(t, 50, scores.LeadManagement, "lead management divides by the fixed count")
}

func TestSEOScorer_EmptyAnswers(t *testing.T) {
	scores := SEOScorer{}.Score(NewAnswerSet())

	assert.Equal(t, Scores{}, scores)
}

func TestSEOScorer_Deterministic(t *testing.T) {
	a := fullSEOAnswers()
	first := SEOScorer{}.Score(a)
	second := SEOScorer{}.Score(a)
	assert.Equal(t, first, second)
}

func TestSEOScorer_ScoresWithinBounds(t *testing.T) {
	partial := NewAnswerSet()
	partial.Set(QLocalRanking, "Page 2")
	partial.SetMulti(QActionStats, "GA4")
	partial.Set(QResponseTime, "Next day or later")

	for _, a := range []AnswerSet{NewAnswerSet(), partial, fullSEOAnswers()} {
		s := SEOScorer{}.Score(a)
		for _, v := range []int{s.Traffic, s.Conversion, s.LeadManagement, s.Overall} {
			require.GreaterOrEqual(t, v, 0)
			require.LessOrEqual(t, v, 100)
		}
	}
}

func TestDetectVariant(t *testing.T) {
	lg := NewAnswerSet()
	lg.Set(QAvgCTR, "≥5%")
	assert.Equal(t, VariantLeadGen, DetectVariant(lg))

	cpcOnly := NewAnswerSet()
	cpcOnly.Set(QAvgCPC, "£1-£2")
	assert.Equal(t, VariantLeadGen, DetectVariant(cpcOnly))

	seo := NewAnswerSet()
	seo.Set(QLocalRanking, "Top 3")
	assert.Equal(t, VariantSEO, DetectVariant(seo))

	assert.Equal(t, VariantSEO, DetectVariant(NewAnswerSet()))
}

func TestScorerFor(t *testing.T) {
	seo := ProductSEO
	leadGen := ProductLeadGen
	lsa := ProductLSA

	lgAnswers := NewAnswerSet()
	lgAnswers.Set(QAvgCPC, "£1-£2")

	assert.Equal(t, VariantSEO, ScorerFor(&seo, lgAnswers).Variant(), "declared product wins over keys")
	assert.Equal(t, VariantLeadGen, ScorerFor(&leadGen, NewAnswerSet()).Variant())
	assert.Equal(t, VariantLeadGen, ScorerFor(&lsa, lgAnswers).Variant(), "LSA falls back to key detection")
	assert.Equal(t, VariantSEO, ScorerFor(nil, NewAnswerSet()).Variant())
}
