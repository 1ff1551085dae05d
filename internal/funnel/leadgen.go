package funnel

// leadGenCategories lists the question ids per category for the paid-traffic
// questionnaire. Order matters only for documentation; scoring is a sum.
var (
	leadGenTrafficQuestions = []string{
		QAvgCTR,
		QTrackingConversions,
		QAvgCPC,
	}
	leadGenConversionQuestions = []string{
		QCostPerAcquisition,
		QConversionRate,
		QCTAVisibility,
		QServicePages,
	}
	leadGenLeadQuestions = []string{
		QLeadSystem,
		QResponseTime,
	}
)

// leadGenScoreTable maps each question's options to 0-4 points.
var leadGenScoreTable = map[string]map[string]int{
	QAvgCTR: {
		"<1%":      0,
		"1-3%":     1,
		"3-5%":     3,
		"≥5%":      4,
		"Not sure": 0,
	},
	QTrackingConversions: {
		"Both":       4,
		"Just forms": 2,
		"Just calls": 2,
		"No":         0,
	},
	QAvgCPC: {
		"<£0.50":   4,
		"£0.50-£1": 3,
		"£1-£2":    2,
		"£2-£5":    1,
		"≥£5":      0,
	},
	QCostPerAcquisition: {
		"<£10":    4,
		"£10-£25": 3,
		"£25-£50": 1,
		"≥£50":    0,
	},
	QConversionRate: {
		"<1%":   0,
		"1-3%":  1,
		"3-5%":  2,
		"5-10%": 3,
		"≥10%":  4,
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

// LeadGenScorer scores the paid-traffic questionnaire.
//
// Unlike SEOScorer, the denominator is always the full fixed question count
// for the category, whether or not an answer was recognized. The two
// scorers deliberately disagree here; do not unify them without checking
// the downstream analytics that consume both.
type LeadGenScorer struct{}

// Variant returns the questionnaire vocabulary this scorer understands.
func (LeadGenScorer) Variant() Variant { return VariantLeadGen }

// Score computes category and overall scores for the answer set.
func (LeadGenScorer) Score(answers AnswerSet) Scores {
	traffic := leadGenCategoryScore(answers, leadGenTrafficQuestions)
	conversion := leadGenCategoryScore(answers, leadGenConversionQuestions)
	lead := leadGenCategoryScore(answers, leadGenLeadQuestions)

	return Scores{
		Traffic:        traffic,
		Conversion:     conversion,
		LeadManagement: lead,
		Overall:        roundPct(float64(traffic+conversion+lead) / 3),
	}
}

func leadGenCategoryScore(answers AnswerSet, questions []string) int {
	earned := 0
	for _, q := range questions {
		option, ok := answers.Get(q)
		if !ok {
			continue
		}
		earned += leadGenScoreTable[q][option]
	}
	return roundPct(100 * float64(earned) / float64(len(questions)*maxPointsPerQuestion))
}

const maxPointsPerQuestion = 4
