// Package wizard models the funnel wizard: the accumulating state document
// carried across steps and the per-product step sequences.
package wizard

import (
	"github.com/sells-group/funnel-wizard/internal/funnel"
)

// LoginDetails are website credentials collected at the final step and
// forwarded verbatim to the automation endpoint.
type LoginDetails struct {
	Username string `json:"username"`
	Password string `json:"password"`
	LoginURL string `json:"loginUrl"`
}

// FactFinder holds the business fact-finder answers. All fields are
// nullable; pages fill them in as the visitor progresses.
type FactFinder struct {
	MonthEstablished   *string `json:"monthEstablished"`
	YearEstablished    *string `json:"yearEstablished"`
	BusinessGeneration *string `json:"businessGeneration"`
	MonthlyLeads       *string `json:"monthlyLeads"`
	HasGMB             *string `json:"hasGMB"`
	IsVatRegistered    *string `json:"isVatRegistered"`
	RadiusCovered      *string `json:"radiusCovered"`
	ResultTimeline     *string `json:"resultTimeline"`
	RunsPPC            *string `json:"runsPPC"`
}

// State is the wizard's accumulating document. Each step applies a partial
// Update; fields are only ever overwritten explicitly, never pruned, so
// back navigation keeps everything filled so far.
type State struct {
	ClientName *string          `json:"clientName"`
	WebsiteURL *string          `json:"websiteUrl"`
	FactFinder FactFinder       `json:"factFinder"`
	Diagnostic funnel.AnswerSet `json:"diagnosticAnswers"`
	Product    *funnel.Product  `json:"product"`

	SmartSiteIncluded *bool    `json:"smartSiteIncluded"`
	InitialCost       *float64 `json:"initialCost"`
	MonthlyCost       *float64 `json:"monthlyCost"`
	ContractLength    *string  `json:"contractLength"`

	LoginDetails *LoginDetails `json:"websiteLoginDetails,omitempty"`

	// Step is the current screen index within the product flow, 1-based.
	Step int `json:"step"`
}

// NewState returns an empty wizard state.
func NewState() State {
	return State{Diagnostic: funnel.NewAnswerSet()}
}

// Update is a partial state change produced by one wizard step. Nil fields
// leave the current value alone; Diagnostic answers merge into the set.
type Update struct {
	ClientName *string          `json:"clientName"`
	WebsiteURL *string          `json:"websiteUrl"`
	FactFinder FactFinder       `json:"factFinder"`
	Diagnostic funnel.AnswerSet `json:"diagnosticAnswers"`
	Product    *funnel.Product  `json:"product"`

	SmartSiteIncluded *bool    `json:"smartSiteIncluded"`
	InitialCost       *float64 `json:"initialCost"`
	MonthlyCost       *float64 `json:"monthlyCost"`
	ContractLength    *string  `json:"contractLength"`

	LoginDetails *LoginDetails `json:"websiteLoginDetails"`

	Step int `json:"step"`
}

// Apply merges an update into the state. Overwrites are explicit: only
// non-nil update fields replace existing values.
func (s *State) Apply(u Update) {
	if u.ClientName != nil {
		s.ClientName = u.ClientName
	}
	if u.WebsiteURL != nil {
		s.WebsiteURL = u.WebsiteURL
	}
	applyFactFinder(&s.FactFinder, u.FactFinder)
	if u.Diagnostic.Len() > 0 {
		if s.Diagnostic.Len() == 0 {
			s.Diagnostic = funnel.NewAnswerSet()
		}
		s.Diagnostic.Merge(u.Diagnostic)
	}
	if u.Product != nil {
		s.Product = u.Product
	}
	if u.SmartSiteIncluded != nil {
		s.SmartSiteIncluded = u.SmartSiteIncluded
	}
	if u.InitialCost != nil {
		s.InitialCost = u.InitialCost
	}
	if u.MonthlyCost != nil {
		s.MonthlyCost = u.MonthlyCost
	}
	if u.ContractLength != nil {
		s.ContractLength = u.ContractLength
	}
	if u.LoginDetails != nil {
		s.LoginDetails = u.LoginDetails
	}
	if u.Step > 0 {
		s.Step = u.Step
	}
}

func applyFactFinder(dst *FactFinder, src FactFinder) {
	if src.MonthEstablished != nil {
		dst.MonthEstablished = src.MonthEstablished
	}
	if src.YearEstablished != nil {
		dst.YearEstablished = src.YearEstablished
	}
	if src.BusinessGeneration != nil {
		dst.BusinessGeneration = src.BusinessGeneration
	}
	if src.MonthlyLeads != nil {
		dst.MonthlyLeads = src.MonthlyLeads
	}
	if src.HasGMB != nil {
		dst.HasGMB = src.HasGMB
	}
	if src.IsVatRegistered != nil {
		dst.IsVatRegistered = src.IsVatRegistered
	}
	if src.RadiusCovered != nil {
		dst.RadiusCovered = src.RadiusCovered
	}
	if src.ResultTimeline != nil {
		dst.ResultTimeline = src.ResultTimeline
	}
	if src.RunsPPC != nil {
		dst.RunsPPC = src.RunsPPC
	}
}

// RunsPaidTraffic reports whether the prospect runs paid traffic. Only an
// explicit "No" turns it off; unanswered counts as running.
func (s *State) RunsPaidTraffic() bool {
	return s.FactFinder.RunsPPC == nil || *s.FactFinder.RunsPPC != "No"
}

// EffectiveProduct applies the VAT override to the state's product.
func (s *State) EffectiveProduct() *funnel.Product {
	return funnel.EffectiveProduct(s.Product, s.FactFinder.IsVatRegistered)
}
