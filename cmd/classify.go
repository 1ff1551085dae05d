package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funnel-wizard/internal/funnel"
	"github.com/sells-group/funnel-wizard/internal/resilience"
	"github.com/sells-group/funnel-wizard/pkg/classifier"
)

var (
	classifyName string
	classifyURL  string
	classifyVAT  string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a business into a product line",
	Long: "Calls the product-classification endpoint for a single business and prints " +
		"the raw recommendation plus the effective product after the VAT override.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Classifier.URL == "" {
			return eris.New("classifier.url is not configured")
		}
		if classifyName == "" {
			return eris.New("--name is required")
		}
		if err := classifier.ValidateWebsiteURL(classifyURL); err != nil {
			return err
		}

		client := classifier.NewClient(cfg.Classifier.URL,
			classifier.WithTimeout(time.Duration(cfg.Classifier.TimeoutSecs)*time.Second))

		// One retry, matching the retry affordance the wizard UI offers.
		retryCfg := resilience.RetryConfig{
			MaxAttempts: 2,
			ShouldRetry: func(err error) bool { return !eris.Is(err, classifier.ErrNoProduct) },
			OnRetry:     resilience.RetryLogger("classifier", "classify"),
		}
		raw, err := resilience.DoVal(cmd.Context(), retryCfg, func(ctx context.Context) (string, error) {
			return client.Classify(ctx, classifyName, classifyURL)
		})
		if err != nil {
			return err
		}

		out := struct {
			Raw       string          `json:"product"`
			Effective *funnel.Product `json:"effectiveProduct"`
		}{Raw: raw}

		if p, ok := funnel.ParseProduct(raw); ok {
			var vat *string
			if classifyVAT != "" {
				vat = &classifyVAT
			}
			out.Effective = funnel.EffectiveProduct(&p, vat)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyName, "name", "n", "", "business name (required)")
	classifyCmd.Flags().StringVarP(&classifyURL, "url", "u", "", "business website URL (required)")
	classifyCmd.Flags().StringVar(&classifyVAT, "vat-registered", "", "VAT registration answer (Yes, No)")
	rootCmd.AddCommand(classifyCmd)
}
