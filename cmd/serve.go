package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/auth"
	"github.com/sells-group/funnel-wizard/internal/monitoring"
	"github.com/sells-group/funnel-wizard/internal/recommend"
	"github.com/sells-group/funnel-wizard/internal/resilience"
	"github.com/sells-group/funnel-wizard/internal/server"
	"github.com/sells-group/funnel-wizard/internal/webhook"
	"github.com/sells-group/funnel-wizard/internal/wizard"
	"github.com/sells-group/funnel-wizard/pkg/classifier"
	"github.com/sells-group/funnel-wizard/pkg/crm"
)

var (
	servePort       int
	serveUIRedirect string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the funnel wizard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := initSessions(ctx)
		if err != nil {
			return err
		}
		defer sessions.Close()

		flows, err := wizard.LoadFlows(nil)
		if err != nil {
			return err
		}

		breakerCfg := resilience.FromCircuitConfig(cfg.Classifier.CircuitFailures, cfg.Classifier.CircuitResetSecs)
		// Any classification failure counts toward opening the circuit.
		breakerCfg.ShouldTrip = func(error) bool { return true }

		resolver := recommend.NewResolver(
			classifier.NewClient(cfg.Classifier.URL,
				classifier.WithTimeout(time.Duration(cfg.Classifier.TimeoutSecs)*time.Second)),
			recommend.WithCircuitBreaker(resilience.NewCircuitBreaker(breakerCfg)),
		)

		reporterOpts := []webhook.Option{
			webhook.WithTimeout(time.Duration(cfg.Tracking.TimeoutSecs) * time.Second),
		}
		if cfg.Tracking.OutboxEnabled {
			reporterOpts = append(reporterOpts, webhook.WithOutbox(st))
		}
		reporter := webhook.NewReporter(cfg.Tracking.WebhookURL, reporterOpts...)

		if cfg.Tracking.OutboxEnabled {
			retryCfg := resilience.FromRetryConfig(cfg.Tracking.RetryAttempts, cfg.Tracking.RetryBackoffMs, 0, 0, -1)
			drainer := webhook.NewDrainer(st, reporter,
				time.Duration(cfg.Tracking.DrainIntervalSecs)*time.Second, cfg.Tracking.DrainBatch,
				webhook.WithRetry(retryCfg))
			go drainer.Run(ctx)
		}

		collector := monitoring.NewCollector(st)
		if cfg.Monitoring.AlertWebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		var google *auth.GoogleService
		if cfg.Google.ClientID != "" {
			google = auth.NewGoogleService(cfg.Google, sessions, serveUIRedirect)
		}

		srv := server.New(cfg.Server, sessions, st, resolver, reporter, flows, cfg.Pricing, collector, google)

		if cfg.Salesforce.Enabled {
			client, err := crm.Connect(crm.Credentials{
				LoginURL: cfg.Salesforce.LoginURL,
				Username: cfg.Salesforce.Username,
				ClientID: cfg.Salesforce.ClientID,
				KeyPath:  cfg.Salesforce.KeyPath,
			})
			if err != nil {
				return err
			}
			srv.SetLeadSyncer(crm.NewLeadSyncer(client))
		}

		err = srv.Run(ctx)
		reporter.Flush()
		zap.L().Info("server stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveUIRedirect, "ui-redirect", "/", "URL to send visitors back to after sign-in")
	rootCmd.AddCommand(serveCmd)
}
