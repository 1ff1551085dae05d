package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/funnel"
	"github.com/sells-group/funnel-wizard/internal/session"
	"github.com/sells-group/funnel-wizard/internal/wizard"
)

// LeadSyncer upserts completed funnel sessions as Salesforce Leads, keyed
// on the session id so re-syncs update rather than duplicate.
type LeadSyncer struct {
	client Client
}

// NewLeadSyncer creates a lead syncer over the given client.
func NewLeadSyncer(client Client) *LeadSyncer {
	return &LeadSyncer{client: client}
}

type leadIDRecord struct {
	ID string `json:"Id"`
}

type leadQueryResult struct {
	Records []leadIDRecord `json:"records"`
}

// SyncSession writes one session to Salesforce and returns the Lead id.
func (s *LeadSyncer) SyncSession(ctx context.Context, sess *session.Session, state wizard.State) (string, error) {
	if sess == nil {
		return "", eris.New("crm: session is required")
	}

	fields := leadFields(sess, state)

	soql := fmt.Sprintf("SELECT Id FROM Lead WHERE Funnel_Session_Id__c = '%s' LIMIT 1",
		escapeSOQL(sess.ID))
	var existing leadQueryResult
	if err := s.client.Query(ctx, soql, &existing); err != nil {
		return "", eris.Wrap(err, "crm: find existing lead")
	}

	if len(existing.Records) > 0 {
		id := existing.Records[0].ID
		if err := s.client.UpdateOne(ctx, "Lead", id, fields); err != nil {
			return "", err
		}
		zap.L().Info("crm lead updated", zap.String("leadId", id), zap.String("sessionId", sess.ID))
		return id, nil
	}

	id, err := s.client.InsertOne(ctx, "Lead", fields)
	if err != nil {
		return "", err
	}
	zap.L().Info("crm lead created", zap.String("leadId", id), zap.String("sessionId", sess.ID))
	return id, nil
}

// leadFields flattens the wizard state into Lead field values. Scores and
// the effective product are computed the same way the tracking payload
// computes them.
func leadFields(sess *session.Session, state wizard.State) map[string]any {
	fields := map[string]any{
		"Funnel_Session_Id__c": sess.ID,
		"LeadSource":           "Funnel Wizard",
	}

	company := "Unknown"
	if state.ClientName != nil && *state.ClientName != "" {
		company = *state.ClientName
	}
	fields["Company"] = company
	fields["LastName"] = company
	if sess.GoogleName != nil && *sess.GoogleName != "" {
		fields["LastName"] = *sess.GoogleName
	}
	if sess.GoogleEmail != nil {
		fields["Email"] = *sess.GoogleEmail
	}
	if state.WebsiteURL != nil {
		fields["Website"] = *state.WebsiteURL
	}

	if product := state.EffectiveProduct(); product != nil {
		fields["Product__c"] = string(*product)
	}

	if state.Diagnostic.Len() > 0 {
		scorer := funnel.ScorerFor(state.EffectiveProduct(), state.Diagnostic)
		scores := scorer.Score(state.Diagnostic)
		if scorer.Variant() == funnel.VariantLeadGen && !state.RunsPaidTraffic() {
			scores = scores.WithoutTraffic()
		} else {
			fields["Traffic_Score__c"] = scores.Traffic
		}
		fields["Conversion_Score__c"] = scores.Conversion
		fields["Lead_Mgmt_Score__c"] = scores.LeadManagement
		fields["Funnel_Score__c"] = scores.Overall
	}

	if state.InitialCost != nil {
		fields["Initial_Cost__c"] = *state.InitialCost
	}
	if state.MonthlyCost != nil {
		fields["Monthly_Cost__c"] = *state.MonthlyCost
	}
	if state.ContractLength != nil {
		fields["Contract_Length__c"] = *state.ContractLength
	}
	if state.SmartSiteIncluded != nil {
		fields["Smart_Site__c"] = *state.SmartSiteIncluded
	}

	return fields
}

func escapeSOQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
