// Package auth implements the Google OAuth sign-in used to attach an
// identity to a funnel session. Sign-in is optional; anonymous sessions
// flow through the wizard unchanged.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sells-group/funnel-wizard/internal/config"
	"github.com/sells-group/funnel-wizard/internal/session"
)

// GoogleService handles the Google OAuth flow and writes the resulting
// identity onto the visitor's session.
type GoogleService struct {
	oauthConfig *oauth2.Config
	sessions    *session.Manager
	uiRedirect  string
	stateTTL    time.Duration
	states      *stateStore

	userInfoURL string
}

// NewGoogleService builds a GoogleService over the session manager.
func NewGoogleService(cfg config.GoogleConfig, sessions *session.Manager, uiRedirect string) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		sessions:    sessions,
		uiRedirect:  uiRedirect,
		stateTTL:    5 * time.Minute,
		states:      newStateStore(),
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// Configured reports whether OAuth credentials are present.
func (s *GoogleService) Configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

// Routes mounts the auth endpoints.
func (s *GoogleService) Routes(r chi.Router) {
	r.Get("/auth/google/start", s.start)
	r.Get("/auth/google/callback", s.callback)
}

// start begins the OAuth dance. The caller's session id rides along in the
// state parameter mapping so the callback knows which session to update.
func (s *GoogleService) start(w http.ResponseWriter, r *http.Request) {
	if !s.Configured() {
		http.Error(w, "google auth not configured", http.StatusInternalServerError)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}
	if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	state := uuid.NewString()
	s.states.put(state, sessionID, time.Now().Add(s.stateTTL))

	http.Redirect(w, r, s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusFound)
}

func (s *GoogleService) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Error(w, "missing state or code", http.StatusBadRequest)
		return
	}

	sessionID, ok := s.states.consume(state)
	if !ok {
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		zap.L().Warn("oauth code exchange failed", zap.Error(err))
		http.Error(w, "failed to exchange code", http.StatusBadRequest)
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		zap.L().Warn("oauth userinfo fetch failed", zap.Error(err))
		http.Error(w, "failed to fetch user profile", http.StatusBadGateway)
		return
	}

	if _, err := s.sessions.SetIdentity(ctx, sessionID, info.Sub, info.Name, info.Email); err != nil {
		zap.L().Error("session identity update failed",
			zap.String("sessionId", sessionID), zap.Error(err))
		http.Error(w, "failed to update session", http.StatusInternalServerError)
		return
	}

	redirectURL, err := appendSession(s.uiRedirect, sessionID)
	if err != nil {
		http.Error(w, "failed to redirect", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return googleUserInfo{}, eris.Wrap(err, "auth: fetch userinfo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, eris.Errorf("auth: userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, eris.Wrap(err, "auth: decode userinfo")
	}

	// Some responses use "id" instead of "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	if info.Sub == "" {
		return googleUserInfo{}, eris.New("auth: user profile has no id")
	}
	return info, nil
}

// stateStore maps in-flight OAuth states to session ids with expiry.
type stateStore struct {
	mu    sync.Mutex
	items map[string]stateEntry
}

type stateEntry struct {
	sessionID string
	expiresAt time.Time
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]stateEntry)}
}

func (s *stateStore) put(state, sessionID string, exp time.Time) {
	s.mu.Lock()
	s.items[state] = stateEntry{sessionID: sessionID, expiresAt: exp}
	s.mu.Unlock()
}

func (s *stateStore) consume(state string) (string, bool) {
	s.mu.Lock()
	entry, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.sessionID, true
}

func appendSession(rawURL, sessionID string) (string, error) {
	if rawURL == "" {
		return "", eris.New("auth: redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "auth: parse redirect url")
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
