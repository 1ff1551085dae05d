package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/funnel"
	"github.com/sells-group/funnel-wizard/internal/session"
	"github.com/sells-group/funnel-wizard/internal/store"
	"github.com/sells-group/funnel-wizard/internal/webhook"
	"github.com/sells-group/funnel-wizard/internal/wizard"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionView is the API shape of a session plus its wizard state.
type sessionView struct {
	Session    *session.Session `json:"session"`
	State      wizard.State     `json:"state"`
	TotalSteps int              `json:"totalSteps"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		zap.L().Error("session create failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	state := wizard.NewState()
	if err := s.persist(r.Context(), sess, state, false); err != nil {
		zap.L().Error("session persist failed", zap.String("sessionId", sess.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	respondJSON(w, http.StatusCreated, sessionView{
		Session:    sess,
		State:      state,
		TotalSteps: s.flows.For(nil).TotalSteps(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, state, ok := s.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionView{
		Session:    sess,
		State:      state,
		TotalSteps: s.flows.For(state.EffectiveProduct()).TotalSteps(),
	})
}

// advanceResponse reports where the visitor is after a transition.
type advanceResponse struct {
	State      wizard.State `json:"state"`
	Step       int          `json:"step"`
	StepName   string       `json:"stepName"`
	TotalSteps int          `json:"totalSteps"`
	MaxStep    int          `json:"maxStep"`
	Final      bool         `json:"final"`
}

// handleAdvance applies one step's partial update, records the transition,
// and fires the tracking payload. Tracking never blocks the response.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, state, ok := s.load(w, r)
	if !ok {
		return
	}

	var update wizard.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.Step < 1 {
		respondError(w, http.StatusBadRequest, "step must be >= 1")
		return
	}

	state.Apply(update)

	flow := s.flows.For(state.EffectiveProduct())
	if update.Step > flow.TotalSteps() {
		respondError(w, http.StatusBadRequest, "step beyond end of flow")
		return
	}

	touched, err := s.sessions.Touch(r.Context(), sess.ID, update.Step)
	if err != nil {
		zap.L().Error("session touch failed", zap.String("sessionId", sess.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update session")
		return
	}
	sess = touched

	final := flow.IsFinal(update.Step)
	if err := s.persist(r.Context(), sess, state, final); err != nil {
		zap.L().Error("state persist failed", zap.String("sessionId", sess.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to persist state")
		return
	}

	payload := webhook.Build(sess, state, webhook.StepInfo{
		Step:       update.Step,
		TotalSteps: flow.TotalSteps(),
		MaxStep:    sess.MaxStep,
	}, update.Step == 1, final, time.Now().UTC())
	s.reporter.ReportBestEffort(payload)

	// Lead sync follows the tracking policy: best effort, never blocks the
	// visitor's response.
	if final && s.leads != nil {
		go func(sess *session.Session, state wizard.State) {
			if _, err := s.leads.SyncSession(context.WithoutCancel(r.Context()), sess, state); err != nil {
				zap.L().Warn("lead sync failed", zap.String("sessionId", sess.ID), zap.Error(err))
			}
		}(sess, state)
	}

	respondJSON(w, http.StatusOK, advanceResponse{
		State:      state,
		Step:       update.Step,
		StepName:   flow.StepName(update.Step),
		TotalSteps: flow.TotalSteps(),
		MaxStep:    sess.MaxStep,
		Final:      final,
	})
}

type resolveRequest struct {
	Name       string `json:"name"`
	WebsiteURL string `json:"websiteUrl"`
}

func (s *Server) handleResolveRecommendation(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.load(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The classification must outlive this request.
	if err := s.resolver.Resolve(context.WithoutCancel(r.Context()), sess.ID, req.Name, req.WebsiteURL); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, s.resolver.State(sess.ID))
}

// recommendationView carries both the raw classification and the product
// after the VAT override.
type recommendationView struct {
	Status           string          `json:"status"`
	Product          *funnel.Product `json:"product"`
	EffectiveProduct *funnel.Product `json:"effectiveProduct"`
}

func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	sess, state, ok := s.load(w, r)
	if !ok {
		return
	}

	res := s.resolver.State(sess.ID)
	respondJSON(w, http.StatusOK, recommendationView{
		Status:           string(res.Status),
		Product:          res.Product,
		EffectiveProduct: funnel.EffectiveProduct(res.Product, state.FactFinder.IsVatRegistered),
	})
}

// scoresView pairs the computed scores with the vocabulary they came from.
type scoresView struct {
	Variant         funnel.Variant `json:"variant"`
	Scores          funnel.Scores  `json:"scores"`
	TrafficExcluded bool           `json:"trafficExcluded"`
}

func (s *Server) handleGetScores(w http.ResponseWriter, r *http.Request) {
	_, state, ok := s.load(w, r)
	if !ok {
		return
	}

	scorer := funnel.ScorerFor(state.EffectiveProduct(), state.Diagnostic)
	scores := scorer.Score(state.Diagnostic)

	excluded := scorer.Variant() == funnel.VariantLeadGen && !state.RunsPaidTraffic()
	if excluded {
		scores = scores.WithoutTraffic()
	}

	respondJSON(w, http.StatusOK, scoresView{
		Variant:         scorer.Variant(),
		Scores:          scores,
		TrafficExcluded: excluded,
	})
}

func (s *Server) handleGetPricing(w http.ResponseWriter, r *http.Request) {
	_, state, ok := s.load(w, r)
	if !ok {
		return
	}

	product := state.EffectiveProduct()
	if product == nil {
		respondError(w, http.StatusConflict, "no product resolved for session")
		return
	}
	pricing := s.pricing.ForProduct(string(*product))
	if pricing == nil {
		respondError(w, http.StatusConflict, "no pricing for product")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"product":        *product,
		"initialCost":    pricing.InitialCost,
		"monthlyCost":    pricing.MonthlyCost,
		"contractLength": pricing.ContractLength,
		"smartSite":      pricing.SmartSite,
	})
}

func (s *Server) handleFunnelMetrics(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("metrics collect failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// load fetches the session and its persisted wizard state, writing the
// error response itself when either is missing.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*session.Session, wizard.State, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "session id is required")
		return nil, wizard.State{}, false
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown session")
		return nil, wizard.State{}, false
	}

	rec, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown session")
		return nil, wizard.State{}, false
	}

	state := wizard.NewState()
	if len(rec.State) > 0 {
		if err := json.Unmarshal(rec.State, &state); err != nil {
			zap.L().Error("state unmarshal failed", zap.String("sessionId", id), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "corrupt session state")
			return nil, wizard.State{}, false
		}
	}
	return sess, state, true
}

// persist snapshots the session and state into the store.
func (s *Server) persist(ctx context.Context, sess *session.Session, state wizard.State, completed bool) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}

	var product *string
	if p := state.EffectiveProduct(); p != nil {
		v := string(*p)
		product = &v
	}

	return s.store.UpsertSession(ctx, store.SessionRecord{
		ID:         sess.ID,
		ClientName: state.ClientName,
		Product:    product,
		MaxStep:    sess.MaxStep,
		TotalSteps: s.flows.For(state.EffectiveProduct()).TotalSteps(),
		Completed:  completed,
		State:      raw,
		StartedAt:  sess.StartTime,
	})
}
