package funnel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DiagnosticAnswers is the fixed outbound schema for questionnaire answers.
// Every key is always serialized; nil marks an unanswered question. The
// verbose JSON keys are part of the external automation contract.
type DiagnosticAnswers struct {
	CTR          *string `json:"CTR"`
	Tracking     *string `json:"Tracking"`
	CPC          *string `json:"CPC"`
	CPA          *string `json:"CPA"`
	CR           *string `json:"CR"`
	CTAVisible   *string `json:"CTA Visible without scrolling?"`
	ServicePages *string `json:"Dedicated service pages?"`
	LeadSystem   *string `json:"Lead management system"`
	ResponseTime *string `json:"Average response time"`
}

// FormatDiagnostic condenses raw answers into the outbound schema using the
// vocabulary of the given variant.
func FormatDiagnostic(variant Variant, answers AnswerSet) DiagnosticAnswers {
	if variant == VariantLeadGen {
		return formatLeadGen(answers)
	}
	return formatSEO(answers)
}

func formatLeadGen(answers AnswerSet) DiagnosticAnswers {
	return DiagnosticAnswers{
		CTR:          answerOrNil(answers, QAvgCTR),
		Tracking:     answerOrNil(answers, QTrackingConversions),
		CPC:          answerOrNil(answers, QAvgCPC),
		CPA:          answerOrNil(answers, QCostPerAcquisition),
		CR:           answerOrNil(answers, QConversionRate),
		CTAVisible:   ctaShortForm(answers),
		ServicePages: answerOrNil(answers, QServicePages),
		LeadSystem:   answerOrNil(answers, QLeadSystem),
		ResponseTime: answerOrNil(answers, QResponseTime),
	}
}

func formatSEO(answers AnswerSet) DiagnosticAnswers {
	return DiagnosticAnswers{
		Tracking:     actionStatsShortForm(answers),
		CTAVisible:   ctaShortForm(answers),
		ServicePages: answerOrNil(answers, QServicePages),
		LeadSystem:   answerOrNil(answers, QLeadSystem),
		ResponseTime: answerOrNil(answers, QResponseTime),
	}
}

// ctaShortForms rewrites the verbose CTA-visibility options to canonical
// short forms. Keys are dash-folded before lookup so en dashes from the UI
// copy match. Anything unmatched reports as "No".
var ctaShortForms = map[string]string{
	"Yes - both mobile & desktop": "Yes - both",
	"Yes - mobile only":           "Yes - mobile",
	"Yes - desktop only":          "Yes - desktop",
}

func ctaShortForm(answers AnswerSet) *string {
	raw, ok := answers.Get(QCTAVisibility)
	if !ok {
		return nil
	}
	if short, ok := ctaShortForms[foldDashes(raw)]; ok {
		return &short
	}
	no := "No"
	return &no
}

// actionStatsShortForm joins the multi-select into a comma-separated list,
// or the literal "None" when nothing was selected.
func actionStatsShortForm(answers AnswerSet) *string {
	if !answers.Has(QActionStats) {
		return nil
	}
	selections := answers.GetMulti(QActionStats)
	joined := "None"
	if len(selections) > 0 {
		joined = strings.Join(selections, ", ")
	}
	return &joined
}

func answerOrNil(answers AnswerSet, questionID string) *string {
	v, ok := answers.Get(questionID)
	if !ok {
		return nil
	}
	return &v
}

// dashFolder maps every Unicode dash-punctuation rune to an ASCII hyphen,
// so option strings copied with en or em dashes compare equal.
var dashFolder = runes.Map(func(r rune) rune {
	if unicode.Is(unicode.Pd, r) {
		return '-'
	}
	return r
})

func foldDashes(s string) string {
	out, _, err := transform.String(dashFolder, s)
	if err != nil {
		return s
	}
	return out
}
