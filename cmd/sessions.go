package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/session"
	"github.com/sells-group/funnel-wizard/internal/store"
	"github.com/sells-group/funnel-wizard/internal/wizard"
	"github.com/sells-group/funnel-wizard/pkg/crm"
)

var (
	sessionsProduct   string
	sessionsCompleted bool
	sessionsSince     int
	sessionsLimit     int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and sync stored funnel sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := listSessions(cmd.Context(), st)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, rec := range records {
			// State blobs are bulky; the list view carries the summary columns only.
			rec.State = nil
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		zap.L().Info("sessions listed", zap.Int("count", len(records)))
		return nil
	},
}

var sessionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync completed sessions to Salesforce as leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Salesforce.Enabled {
			return eris.New("salesforce sync is disabled; set salesforce.enabled")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := crm.Connect(crm.Credentials{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPath:  cfg.Salesforce.KeyPath,
		})
		if err != nil {
			return err
		}
		syncer := crm.NewLeadSyncer(client)

		sessionsCompleted = true
		records, err := listSessions(cmd.Context(), st)
		if err != nil {
			return err
		}

		var synced, failed int
		for _, rec := range records {
			var state wizard.State
			if err := json.Unmarshal(rec.State, &state); err != nil {
				zap.L().Warn("skipping session with unreadable state",
					zap.String("sessionId", rec.ID), zap.Error(err))
				failed++
				continue
			}

			sess := &session.Session{
				ID:        rec.ID,
				StartTime: rec.StartedAt,
				MaxStep:   rec.MaxStep,
			}
			leadID, err := syncer.SyncSession(cmd.Context(), sess, state)
			if err != nil {
				zap.L().Warn("lead sync failed",
					zap.String("sessionId", rec.ID), zap.Error(err))
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", rec.ID, leadID)
			synced++
		}

		zap.L().Info("lead sync finished", zap.Int("synced", synced), zap.Int("failed", failed))
		if failed > 0 {
			return eris.Errorf("%d of %d sessions failed to sync", failed, synced+failed)
		}
		return nil
	},
}

// listSessions queries the store with the shared sessions flags applied.
func listSessions(ctx context.Context, st store.Store) ([]store.SessionRecord, error) {
	filter := store.SessionFilter{
		Product:       sessionsProduct,
		CompletedOnly: sessionsCompleted,
		Limit:         sessionsLimit,
	}
	if sessionsSince > 0 {
		filter.StartedAfter = time.Now().UTC().Add(-time.Duration(sessionsSince) * time.Hour)
	}
	return st.ListSessions(ctx, filter)
}

func init() {
	sessionsCmd.PersistentFlags().StringVarP(&sessionsProduct, "product", "p", "", "filter by effective product")
	sessionsCmd.PersistentFlags().BoolVar(&sessionsCompleted, "completed", false, "only completed sessions")
	sessionsCmd.PersistentFlags().IntVar(&sessionsSince, "since", 0, "only sessions started within the last N hours")
	sessionsCmd.PersistentFlags().IntVar(&sessionsLimit, "limit", 500, "maximum sessions to return")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSyncCmd)
	rootCmd.AddCommand(sessionsCmd)
}
