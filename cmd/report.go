package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/export"
	"github.com/sells-group/funnel-wizard/internal/monitoring"
	"github.com/sells-group/funnel-wizard/internal/store"
)

var (
	reportOut   string
	reportHours int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a session and funnel-metrics workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := monitoring.NewCollector(st).Collect(cmd.Context(), reportHours)
		if err != nil {
			return err
		}

		sessions, err := st.ListSessions(cmd.Context(), store.SessionFilter{
			StartedAfter: time.Now().UTC().Add(-time.Duration(reportHours) * time.Hour),
			Limit:        10000,
		})
		if err != nil {
			return err
		}

		if err := export.WriteSessionReport(reportOut, sessions, snap); err != nil {
			return err
		}

		zap.L().Info("report written",
			zap.String("path", reportOut),
			zap.Int("sessions", len(sessions)),
			zap.Int("lookbackHours", reportHours))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "funnel-report.xlsx", "output workbook path")
	reportCmd.Flags().IntVar(&reportHours, "hours", 168, "lookback window in hours")
	rootCmd.AddCommand(reportCmd)
}
