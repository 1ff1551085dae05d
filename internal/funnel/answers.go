package funnel

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Question ids shared by both questionnaire variants.
const (
	QCTAVisibility = "ctaVisibility"
	QServicePages  = "servicePages"
	QLeadSystem    = "leadManagementSystem"
	QResponseTime  = "avgResponseTime"
)

// LeadGen-variant question ids.
const (
	QAvgCTR              = "avgCTR"
	QTrackingConversions = "trackingConversions"
	QAvgCPC              = "avgCPC"
	QCostPerAcquisition  = "costPerAcquisition"
	QConversionRate      = "conversionRate"
)

// SEO-variant question ids. QActionStats is the one multi-select question.
const (
	QLocalRanking   = "localRanking"
	QOrganicTraffic = "organicTraffic"
	QActionStats    = "actionStats"
)

// ActionStatsNone is the exclusive "None of the above" option on the
// action-stats multi-select.
const ActionStatsNone = "None of the above"

// AnswerSet maps question ids to selected options. All questions hold a
// single option except the action-stats multi-select, which holds an
// ordered list of distinct selections. Unrecognized ids are carried but
// ignored by scoring.
type AnswerSet struct {
	single map[string]string
	multi  map[string][]string
}

// NewAnswerSet returns an empty AnswerSet.
func NewAnswerSet() AnswerSet {
	return AnswerSet{
		single: make(map[string]string),
		multi:  make(map[string][]string),
	}
}

// Set records a single-select answer.
func (a AnswerSet) Set(questionID, option string) {
	a.single[questionID] = option
}

// SetMulti records a multi-select answer, dropping duplicate selections
// while preserving order.
func (a AnswerSet) SetMulti(questionID string, options ...string) {
	seen := make(map[string]struct{}, len(options))
	var distinct []string
	for _, o := range options {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		distinct = append(distinct, o)
	}
	a.multi[questionID] = distinct
}

// Get returns the single-select answer for a question.
func (a AnswerSet) Get(questionID string) (string, bool) {
	v, ok := a.single[questionID]
	return v, ok
}

// GetMulti returns the multi-select answer for a question, or nil.
func (a AnswerSet) GetMulti(questionID string) []string {
	return a.multi[questionID]
}

// Has reports whether any answer exists for the question.
func (a AnswerSet) Has(questionID string) bool {
	if _, ok := a.single[questionID]; ok {
		return true
	}
	_, ok := a.multi[questionID]
	return ok
}

// Len returns the number of answered questions.
func (a AnswerSet) Len() int {
	return len(a.single) + len(a.multi)
}

// Merge copies every answer from other into a, overwriting on collision.
func (a AnswerSet) Merge(other AnswerSet) {
	for k, v := range other.single {
		a.single[k] = v
	}
	for k, v := range other.multi {
		a.SetMulti(k, v...)
	}
}

// MarshalJSON encodes the set as a flat object: single-select answers as
// strings, multi-select answers as arrays.
func (a AnswerSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, a.Len())
	for k, v := range a.single {
		out[k] = v
	}
	for k, v := range a.multi {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same flat shape: string values become
// single-select answers, array values multi-select answers.
func (a *AnswerSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "funnel: unmarshal answer set")
	}
	*a = NewAnswerSet()
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			a.single[k] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			a.SetMulti(k, list...)
			continue
		}
		return eris.Errorf("funnel: answer %q is neither string nor string array", k)
	}
	return nil
}
