package funnel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFormatDiagnostic_LeadGen(t *testing.T) {
	a := NewAnswerSet()
	a.Set(QAvgCTR, "≥5%")
	a.Set(QTrackingConversions, "Both")
	a.Set(QAvgCPC, "<£0.50")
	a.Set(QCostPerAcquisition, "≥£50")
	a.Set(QConversionRate, "1-3%")
	a.Set(QCTAVisibility, "Yes – both mobile & desktop")
	a.Set(QServicePages, "Some of them")
	a.Set(QLeadSystem, "Spreadsheet")
	a.Set(QResponseTime, "Same day")

	got := FormatDiagnostic(VariantLeadGen, a)

	assert.Equal(t, DiagnosticAnswers{
		CTR:          strPtr("≥5%"),
		Tracking:     strPtr("Both"),
		CPC:          strPtr("<£0.50"),
		CPA:          strPtr("≥£50"),
		CR:           strPtr("1-3%"),
		CTAVisible:   strPtr("Yes - both"),
		ServicePages: strPtr("Some of them"),
		LeadSystem:   strPtr("Spreadsheet"),
		ResponseTime: strPtr("Same day"),
	}, got)
}

func TestFormatDiagnostic_MissingAnswersAreNil(t *testing.T) {
	got := FormatDiagnostic(VariantLeadGen, NewAnswerSet())
	assert.Equal(t, DiagnosticAnswers{}, got)
}

// The CTA options arrive from the UI with en dashes; both dash spellings
// must normalize to the same short form.
func TestCTAShortForm_DashFolding(t *testing.T) {
	cases := map[string]string{
		"Yes – both mobile & desktop": "Yes - both",
		"Yes - both mobile & desktop": "Yes - both",
		"Yes – mobile only":           "Yes - mobile",
		"Yes — desktop only":          "Yes - desktop",
		"Maybe later":                 "No",
		"No":                          "No",
	}
	for raw, want := range cases {
		a := NewAnswerSet()
		a.Set(QCTAVisibility, raw)
		got := FormatDiagnostic(VariantLeadGen, a)
		require.NotNil(t, got.CTAVisible)
		assert.Equal(t, want, *got.CTAVisible, "raw option %q", raw)
	}
}

func TestFormatDiagnostic_SEOActionStats(t *testing.T) {
	a := NewAnswerSet()
	a.SetMulti(QActionStats, "GA4", "GSC")

	got := FormatDiagnostic(VariantSEO, a)
	require.NotNil(t, got.Tracking)
	assert.Equal(t, "GA4, GSC", *got.Tracking)
	assert.Nil(t, got.CTR, "LeadGen-only fields stay nil on the SEO variant")
	assert.Nil(t, got.CPC)

	empty := NewAnswerSet()
	empty.SetMulti(QActionStats)
	got = FormatDiagnostic(VariantSEO, empty)
	require.NotNil(t, got.Tracking)
	assert.Equal(t, "None", *got.Tracking)

	got = FormatDiagnostic(VariantSEO, NewAnswerSet())
	assert.Nil(t, got.Tracking, "unanswered multi-select reports null, not None")
}

// The outbound JSON schema must always carry every key, null where unknown.
func TestDiagnosticAnswers_JSONKeysAlwaysPresent(t *testing.T) {
	data, err := json.Marshal(DiagnosticAnswers{})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{
		"CTR", "Tracking", "CPC", "CPA", "CR",
		"CTA Visible without scrolling?",
		"Dedicated service pages?",
		"Lead management system",
		"Average response time",
	} {
		v, ok := m[key]
		require.True(t, ok, "key %q missing", key)
		assert.Nil(t, v)
	}
}
