// Package funnel implements the funnel-health scoring model: category
// scoring over static per-question lookup tables, diagnostic answer
// formatting for outbound reporting, and the product recommendation rules.
package funnel

// Product is a recommendable product line.
type Product string

const (
	ProductSEO     Product = "SEO"
	ProductLeadGen Product = "LeadGen"
	ProductLSA     Product = "LSA"
)

// ParseProduct maps a classification string to a known Product.
// Unknown values return false; callers treat that as "no recommendation".
func ParseProduct(s string) (Product, bool) {
	switch Product(s) {
	case ProductSEO, ProductLeadGen, ProductLSA:
		return Product(s), true
	}
	return "", false
}

// EffectiveProduct applies the VAT-eligibility override to a raw
// recommendation: Local Services Ads require a VAT-registered (or limited)
// company, so an LSA recommendation for a prospect that answered "No"
// downgrades to SEO. Every other combination passes through unchanged,
// including an unanswered VAT question.
func EffectiveProduct(raw *Product, vatRegistered *string) *Product {
	if raw == nil {
		return nil
	}
	if *raw == ProductLSA && vatRegistered != nil && *vatRegistered == "No" {
		seo := ProductSEO
		return &seo
	}
	p := *raw
	return &p
}
