package wizard

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/funnel-wizard/internal/funnel"
)

//go:embed flows.yaml
var defaultFlowsYAML []byte

// Flow is one product variant's step sequence.
type Flow struct {
	Steps []string `yaml:"steps"`
}

// TotalSteps returns the number of screens in the flow.
func (f Flow) TotalSteps() int { return len(f.Steps) }

// StepIndex returns the 1-based position of a named step, or 0 if the flow
// has no such step.
func (f Flow) StepIndex(name string) int {
	for i, s := range f.Steps {
		if s == name {
			return i + 1
		}
	}
	return 0
}

// StepName returns the name of the 1-based step index, or "".
func (f Flow) StepName(step int) string {
	if step < 1 || step > len(f.Steps) {
		return ""
	}
	return f.Steps[step-1]
}

// IsFinal reports whether the 1-based step index is the flow's last screen.
func (f Flow) IsFinal(step int) bool {
	return len(f.Steps) > 0 && step == len(f.Steps)
}

// Flows holds the step sequences for all product variants.
type Flows struct {
	Variants map[funnel.Product]Flow `yaml:"variants"`
}

// For returns the flow for a product. Unclassified prospects follow the
// SEO flow, the hard-routed fallback for the no-URL path.
func (fl Flows) For(product *funnel.Product) Flow {
	if product != nil {
		if f, ok := fl.Variants[*product]; ok {
			return f
		}
	}
	return fl.Variants[funnel.ProductSEO]
}

// LoadFlows parses flow definitions from YAML. Pass nil to use the
// embedded defaults.
func LoadFlows(data []byte) (Flows, error) {
	if data == nil {
		data = defaultFlowsYAML
	}
	var fl Flows
	if err := yaml.Unmarshal(data, &fl); err != nil {
		return Flows{}, eris.Wrap(err, "wizard: parse flows")
	}
	for product, f := range fl.Variants {
		if _, ok := funnel.ParseProduct(string(product)); !ok {
			return Flows{}, eris.Errorf("wizard: unknown product variant %q", product)
		}
		if len(f.Steps) == 0 {
			return Flows{}, eris.Errorf("wizard: variant %q has no steps", product)
		}
	}
	for _, required := range []funnel.Product{funnel.ProductSEO, funnel.ProductLeadGen, funnel.ProductLSA} {
		if _, ok := fl.Variants[required]; !ok {
			return Flows{}, eris.Errorf("wizard: variant %q missing", required)
		}
	}
	return fl, nil
}
