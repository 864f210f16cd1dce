package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"carbontracker/internal/assist"
	"carbontracker/internal/auth"
	"carbontracker/internal/backend"
	"carbontracker/internal/config"
	"carbontracker/internal/records"
)

var errNoAssistant = errors.New("assistant not configured: set GEMINI_API_KEY")

type app struct {
	cfg *config.Config
	now func() time.Time
	loc *time.Location

	newStore     func(cfg *config.Config) (records.Store, error)
	newAssistant func(cfg *config.Config) (*assist.Assistant, error)

	// flags
	token  string
	apiURL string
	asJSON bool
}

func wireApp() *app {
	return &app{
		cfg:          config.Load(),
		now:          time.Now,
		loc:          time.Local,
		newStore:     remoteStore,
		newAssistant: geminiAssistant,
	}
}

func remoteStore(cfg *config.Config) (records.Store, error) {
	if cfg.RecordsAPIURL == "" {
		return nil, errors.New("no purchase API configured: pass --api-url or set RECORDS_API_URL")
	}
	return backend.NewRecordsClient(backend.Config{
		Type:           backend.APIBackend,
		RecordsAPIURL:  cfg.RecordsAPIURL,
		RequestTimeout: cfg.RequestTimeout,
	})
}

func geminiAssistant(cfg *config.Config) (*assist.Assistant, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errNoAssistant
	}
	caller := assist.NewCaller(cfg.GeminiEndpoint, cfg.GeminiModel, cfg.GeminiAPIKey,
		assist.WithDoer(&http.Client{Timeout: cfg.RequestTimeout}))
	return assist.NewAssistant(caller), nil
}

func (a *app) session() (auth.Session, error) {
	s, err := auth.ReadUnverified(a.token, a.now())
	if err != nil {
		return auth.Session{}, fmt.Errorf("read token (pass --token or set CARBON_TOKEN): %w", err)
	}
	return s, nil
}

func (a *app) store() (records.Store, auth.Session, error) {
	sess, err := a.session()
	if err != nil {
		return nil, auth.Session{}, err
	}
	if a.apiURL != "" {
		a.cfg.RecordsAPIURL = a.apiURL
	}
	st, err := a.newStore(a.cfg)
	if err != nil {
		return nil, auth.Session{}, err
	}
	return st, sess, nil
}

func (a *app) writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultToken() string { return os.Getenv("CARBON_TOKEN") }
