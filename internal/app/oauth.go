package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/semmidev/custos/internal/infrastructure/logger"
)

// DriveOAuth walks an operator through the Google consent screen and prints
// the refresh token to paste into a gdrive upload target.
type DriveOAuth struct {
	config *oauth2.Config
	logger *logger.Logger

	mu     sync.Mutex
	states map[string]time.Time
	server *http.Server
}

func loadDriveOAuthConfig(clientSecretPath string) (*oauth2.Config, error) {
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return cfg, nil
}

func NewDriveOAuth(logger *logger.Logger, clientSecretPath string) (*DriveOAuth, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	cfg, err := loadDriveOAuthConfig(clientSecretPath)
	if err != nil {
		return nil, err
	}
	return newDriveOAuth(cfg, logger), nil
}

func newDriveOAuth(cfg *oauth2.Config, logger *logger.Logger) *DriveOAuth {
	return &DriveOAuth{config: cfg, logger: logger, states: make(map[string]time.Time)}
}

func (s *DriveOAuth) Config() *oauth2.Config {
	return s.config
}

// Register mounts the consent and callback routes on mux.
func (s *DriveOAuth) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/google/drive", s.handleStart)
	mux.HandleFunc("GET /auth/google/callback", s.handleCallback)
}

func (s *DriveOAuth) newState() string {
	state := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, issued := range s.states {
		if now.Sub(issued) > 10*time.Minute {
			delete(s.states, k)
		}
	}
	s.states[state] = now
	return state
}

func (s *DriveOAuth) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.states[state]
	delete(s.states, state)
	return ok && time.Since(issued) <= 10*time.Minute
}

func (s *DriveOAuth) handleStart(w http.ResponseWriter, r *http.Request) {
	authURL := s.config.AuthCodeURL(s.newState(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (s *DriveOAuth) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !s.consumeState(r.URL.Query().Get("state")) {
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	token, err := s.config.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
		return
	}

	tokenJSON, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		http.Error(w, "failed to marshal token", http.StatusInternalServerError)
		return
	}

	if token.RefreshToken == "" {
		fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
		return
	}

	fmt.Fprintf(w, "✅ Refresh Token:\n%s\n\nFull Token JSON:\n%s", token.RefreshToken, tokenJSON)
}

// Serve runs a standalone OAuth server on addr until ctx is done.
func (s *DriveOAuth) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.Register(mux)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Google Drive OAuth server listening on %s, open /auth/google/drive", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("OAuth server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped successfully")
	return nil
}
