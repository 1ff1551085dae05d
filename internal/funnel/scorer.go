package funnel

import "math"

// Scores holds the three category percentages and their overall mean,
// each an integer in [0,100].
type Scores struct {
	Traffic        int `json:"traffic"`
	Conversion     int `json:"conversion"`
	LeadManagement int `json:"leadManagement"`
	Overall        int `json:"overall"`
}

// WithoutTraffic recomputes the overall score from the conversion and
// lead-management categories only. Used when the prospect does not run
// paid traffic, in which case the traffic category is not applicable.
func (s Scores) WithoutTraffic() Scores {
	s.Overall = roundPct(float64(s.Conversion+s.LeadManagement) / 2)
	return s
}

// Variant identifies which questionnaire vocabulary an answer set uses.
type Variant string

const (
	VariantLeadGen Variant = "leadgen"
	VariantSEO     Variant = "seo"
)

// Scorer converts an answer set into category and overall scores.
// Implementations are pure: same answers, same scores, no error paths.
// Unanswered or unrecognized options contribute zero points.
type Scorer interface {
	Score(answers AnswerSet) Scores
	Variant() Variant
}

// DetectVariant guesses the questionnaire variant from the answer keys:
// avgCTR and avgCPC only exist in the LeadGen vocabulary.
func DetectVariant(answers AnswerSet) Variant {
	if answers.Has(QAvgCTR) || answers.Has(QAvgCPC) {
		return VariantLeadGen
	}
	return VariantSEO
}

// ScorerFor picks the scoring strategy for a product. SEO prospects get the
// SEO questionnaire; LeadGen prospects the paid-traffic one. LSA and
// unclassified prospects fall back to key detection on the answers.
func ScorerFor(product *Product, answers AnswerSet) Scorer {
	if product != nil {
		switch *product {
		case ProductSEO:
			return SEOScorer{}
		case ProductLeadGen:
			return LeadGenScorer{}
		}
	}
	if DetectVariant(answers) == VariantLeadGen {
		return LeadGenScorer{}
	}
	return SEOScorer{}
}

// roundPct rounds a percentage half-up to the nearest integer. Rounding
// happens only here, on final percentages, never on intermediate points.
func roundPct(v float64) int {
	return int(math.Floor(v + 0.5))
}
