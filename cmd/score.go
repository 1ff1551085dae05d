package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funnel-wizard/internal/funnel"
)

var (
	scoreAnswersPath    string
	scoreProduct        string
	scoreExcludeTraffic bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a diagnostic answer set offline",
	Long: "Reads a JSON document of diagnostic answers (question id to selected option, " +
		"or an array of options for multi-select questions) and prints the category " +
		"and overall scores alongside the webhook-formatted answers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		raw, err := readAnswers(scoreAnswersPath)
		if err != nil {
			return err
		}

		answers := funnel.NewAnswerSet()
		if err := json.Unmarshal(raw, &answers); err != nil {
			return eris.Wrap(err, "parse answers")
		}
		if answers.Len() == 0 {
			return eris.New("no answers provided")
		}

		var product *funnel.Product
		if scoreProduct != "" {
			p, ok := funnel.ParseProduct(scoreProduct)
			if !ok {
				return eris.Errorf("unknown product %q", scoreProduct)
			}
			product = &p
		}

		scorer := funnel.ScorerFor(product, answers)
		scores := scorer.Score(answers)
		if scoreExcludeTraffic {
			scores = scores.WithoutTraffic()
		}

		out := struct {
			Variant         funnel.Variant           `json:"variant"`
			Scores          funnel.Scores            `json:"scores"`
			TrafficExcluded bool                     `json:"trafficExcluded"`
			Formatted       funnel.DiagnosticAnswers `json:"diagnosticAnswers"`
		}{
			Variant:         scorer.Variant(),
			Scores:          scores,
			TrafficExcluded: scoreExcludeTraffic,
			Formatted:       funnel.FormatDiagnostic(scorer.Variant(), answers),
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// readAnswers loads the answers document from a file, or stdin when the
// path is "-" or empty.
func readAnswers(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read answers from stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read answers file %s", path)
	}
	return data, nil
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreAnswersPath, "answers", "a", "", "path to answers JSON (default stdin)")
	scoreCmd.Flags().StringVarP(&scoreProduct, "product", "p", "", fmt.Sprintf("product hint (%s, %s, %s)",
		funnel.ProductSEO, funnel.ProductLeadGen, funnel.ProductLSA))
	scoreCmd.Flags().BoolVar(&scoreExcludeTraffic, "exclude-traffic", false, "recompute overall without the traffic category")
	rootCmd.AddCommand(scoreCmd)
}
