// Package webhook assembles and delivers the page-tracking payload sent to
// the external automation endpoint on every wizard transition.
package webhook

import (
	"fmt"
	"time"

	"github.com/sells-group/funnel-wizard/internal/funnel"
	"github.com/sells-group/funnel-wizard/internal/session"
	"github.com/sells-group/funnel-wizard/internal/wizard"
)

// StepInfo locates the transition within the product flow.
type StepInfo struct {
	Step       int `json:"step"`
	TotalSteps int `json:"totalSteps"`
	MaxStep    int `json:"maxStep"`
}

// FunnelScores carries the category percentages formatted as "NN%" strings.
// All keys serialize even when null; the receiving automation relies on a
// stable shape.
type FunnelScores struct {
	Traffic        *string `json:"traffic"`
	Conversions    *string `json:"conversions"`
	LeadManagement *string `json:"leadManagement"`
	Overall        *string `json:"overall"`
}

// Payload is the fixed outbound tracking document. Every field is always
// present; null marks the unknown ones. Field order here is the wire order.
type Payload struct {
	SessionID      *string `json:"sessionId"`
	GoogleID       *string `json:"googleId"`
	GoogleFullName *string `json:"googleFullName"`
	GoogleEmail    *string `json:"googleEmail"`

	StartPage bool `json:"startPage"`
	EndPage   bool `json:"endPage"`

	Step       *int `json:"step"`
	TotalSteps *int `json:"totalSteps"`

	ClientName *string `json:"clientName"`
	WebsiteURL *string `json:"websiteUrl"`

	FactFinder        wizard.FactFinder        `json:"factFinder"`
	DiagnosticAnswers funnel.DiagnosticAnswers `json:"diagnosticAnswers"`
	FunnelScores      FunnelScores             `json:"funnelScores"`

	Product           *string  `json:"product"`
	SmartSiteIncluded *bool    `json:"smartSiteIncluded"`
	InitialCost       *float64 `json:"initialCost"`
	MonthlyCost       *float64 `json:"monthlyCost"`
	ContractLength    *string  `json:"contractLength"`

	StartTime *string `json:"startTime"`
	Timestamp *string `json:"timestamp"`

	// LoginDetails rides along only on the completion step.
	LoginDetails *wizard.LoginDetails `json:"websiteLoginDetails,omitempty"`
}

// Build assembles a payload from the session, the accumulated wizard state
// and the transition's step info. It is pure: the caller injects the
// timestamp, and identical inputs marshal to identical bytes.
//
// The emitted step is the session's max step when one has been recorded, so
// drop-off analytics always see the deepest point reached, not the screen
// the visitor happens to be on.
func Build(sess *session.Session, state wizard.State, info StepInfo, startPage, endPage bool, now time.Time) Payload {
	p := Payload{
		StartPage:         startPage,
		EndPage:           endPage,
		TotalSteps:        intOrNil(info.TotalSteps),
		ClientName:        state.ClientName,
		WebsiteURL:        state.WebsiteURL,
		FactFinder:        state.FactFinder,
		SmartSiteIncluded: state.SmartSiteIncluded,
		InitialCost:       state.InitialCost,
		MonthlyCost:       state.MonthlyCost,
		ContractLength:    state.ContractLength,
		Timestamp:         timeOrNil(now),
		LoginDetails:      state.LoginDetails,
	}

	step := info.Step
	if info.MaxStep > 0 {
		step = info.MaxStep
	}
	p.Step = intOrNil(step)

	if sess != nil {
		p.SessionID = strOrNil(sess.ID)
		p.GoogleID = sess.GoogleID
		p.GoogleFullName = sess.GoogleName
		p.GoogleEmail = sess.GoogleEmail
		p.StartTime = timeOrNil(sess.StartTime)
	}

	product := state.EffectiveProduct()
	if product != nil {
		s := string(*product)
		p.Product = &s
	}

	scorer := funnel.ScorerFor(product, state.Diagnostic)
	p.DiagnosticAnswers = funnel.FormatDiagnostic(scorer.Variant(), state.Diagnostic)

	if state.Diagnostic.Len() > 0 {
		scores := scorer.Score(state.Diagnostic)
		if scorer.Variant() == funnel.VariantLeadGen && !state.RunsPaidTraffic() {
			scores = scores.WithoutTraffic()
			p.FunnelScores = FunnelScores{
				Conversions:    pct(scores.Conversion),
				LeadManagement: pct(scores.LeadManagement),
				Overall:        pct(scores.Overall),
			}
		} else {
			p.FunnelScores = FunnelScores{
				Traffic:        pct(scores.Traffic),
				Conversions:    pct(scores.Conversion),
				LeadManagement: pct(scores.LeadManagement),
				Overall:        pct(scores.Overall),
			}
		}
	}

	return p
}

func pct(v int) *string {
	s := fmt.Sprintf("%d%%", v)
	return &s
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intOrNil(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func timeOrNil(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
