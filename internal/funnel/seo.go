package funnel

// SEO-variant category composition. The action-stats multi-select folds
// into traffic with its own fixed slot in the denominator.
var (
	seoTrafficQuestions = []string{
		QLocalRanking,
		QOrganicTraffic,
	}
	seoConversionQuestions = []string{
		QCTAVisibility,
		QServicePages,
	}
	seoLeadQuestions = []string{
		QLeadSystem,
		QResponseTime,
	}
)

var seoScoreTable = map[string]map[string]int{
	QLocalRanking: {
		"Top 3":               4,
		"Page 1":              3,
		"Page 2":              1,
		"Nowhere to be found": 0,
		"Not sure":            0,
	},
	QOrganicTraffic: {
		"Growing":   4,
		"Steady":    2,
		"Declining": 0,
		"Not sure":  0,
	},
	QCTAVisibility: {
		"Yes – both mobile & desktop": 4,
		"Yes – mobile only":           2,
		"Yes – desktop only":          2,
		"No":                          0,
	},
	QServicePages: {
		"Yes":          4,
		"Some of them": 2,
		"No":           0,
	},
	QLeadSystem: {
		"Dedicated CRM": 4,
		"Spreadsheet":   2,
		"Email inbox":   1,
		"No system":     0,
	},
	QResponseTime: {
		"Within 5 minutes":  4,
		"Within an hour":    3,
		"Same day":          2,
		"Next day or later": 0,
	},
}

// SEOScorer scores the organic-search questionnaire.
//
// Traffic and conversion denominators count only questions whose answer is
// recognized in the table; lead management always divides by the fixed
// question count. LeadGenScorer divides every category by the fixed count.
// The asymmetry is longstanding observed behavior and stays as-is so both
// questionnaires keep reporting the numbers downstream dashboards expect.
type SEOScorer struct{}

// Variant returns the questionnaire vocabulary this scorer understands.
func (SEOScorer) Variant() Variant { return VariantSEO }

// Score computes category and overall scores for the answer set.
func (SEOScorer) Score(answers AnswerSet) Scores {
	traffic := seoTrafficScore(answers)
	conversion := seoDynamicCategoryScore(answers, seoConversionQuestions)
	lead := seoFixedCategoryScore(answers, seoLeadQuestions)

	return Scores{
		Traffic:        traffic,
		Conversion:     conversion,
		LeadManagement: lead,
		Overall:        roundPct(float64(traffic+conversion+lead) / 3),
	}
}

// seoTrafficScore sums the recognized single-select contributions plus the
// action-stats partial credit. The action-stats slot always adds 4 to the
// denominator, answered or not.
func seoTrafficScore(answers AnswerSet) int {
	earned := 0.0
	denom := 0
	for _, q := range seoTrafficQuestions {
		option, ok := answers.Get(q)
		if !ok {
			continue
		}
		pts, known := seoScoreTable[q][option]
		if !known {
			continue
		}
		earned += float64(pts)
		denom += maxPointsPerQuestion
	}

	earned += actionStatsPoints(answers.GetMulti(QActionStats))
	denom += maxPointsPerQuestion

	return roundPct(100 * earned / float64(denom))
}

// actionStatsPoints grants partial credit per tracking tool in use, capped
// at three tools: min(count,3) * 4/3. "None of the above" zeroes the
// question no matter what else is selected.
func actionStatsPoints(selections []string) float64 {
	if len(selections) == 0 {
		return 0
	}
	for _, s := range selections {
		if s == ActionStatsNone {
			return 0
		}
	}
	n := len(selections)
	if n > 3 {
		n = 3
	}
	return float64(n) * (4.0 / 3.0)
}

func seoDynamicCategoryScore(answers AnswerSet, questions []string) int {
	earned := 0
	denom := 0
	for _, q := range questions {
		option, ok := answers.Get(q)
		if !ok {
			continue
		}
		pts, known := seoScoreTable[q][option]
		if !known {
			continue
		}
		earned += pts
		denom += maxPointsPerQuestion
	}
	if denom == 0 {
		return 0
	}
	return roundPct(100 * float64(earned) / float64(denom))
}

func seoFixedCategoryScore(answers AnswerSet, questions []string) int {
	earned := 0
	for _, q := range questions {
		option, ok := answers.Get(q)
		if !ok {
			continue
		}
		earned += seoScoreTable[q][option]
	}
	return roundPct(100 * float64(earned) / float64(len(questions)*maxPointsPerQuestion))
}
