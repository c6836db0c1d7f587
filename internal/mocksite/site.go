package mocksite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Scenario selects the page state the site serves.
type Scenario string

const (
	// ScenarioClaim serves a claimable reward; after the first claim the
	// page flips to the cooldown message.
	ScenarioClaim Scenario = "claim"
	// ScenarioCooldown serves a reward already on cooldown.
	ScenarioCooldown Scenario = "cooldown"
	// ScenarioLogin serves the signed-out page.
	ScenarioLogin Scenario = "login"
	// ScenarioDialogOpen serves the page with the dialog already open.
	ScenarioDialogOpen Scenario = "dialog-open"
	// ScenarioNoTrigger serves the reward region without a trigger.
	ScenarioNoTrigger Scenario = "no-trigger"
	// ScenarioDeadTrigger serves a trigger whose click opens nothing.
	ScenarioDeadTrigger Scenario = "dead-trigger"
)

// Scenarios lists the supported scenario names.
func Scenarios() []Scenario {
	return []Scenario{
		ScenarioClaim,
		ScenarioCooldown,
		ScenarioLogin,
		ScenarioDialogOpen,
		ScenarioNoTrigger,
		ScenarioDeadTrigger,
	}
}

const (
	availableMessage = "Daily reward ready to claim!"
	cooldownMessage  = "Next reward available at 12/31/2030 23:59"
)

// Site is an in-process stand-in for the reward page. It serves the markup
// the claim selectors expect and records claim submissions.
type Site struct {
	mu       sync.Mutex
	scenario Scenario
	claims   int
}

// New constructs a site for the given scenario.
func New(scenario Scenario) (*Site, error) {
	switch scenario {
	case ScenarioClaim, ScenarioCooldown, ScenarioLogin, ScenarioDialogOpen, ScenarioNoTrigger, ScenarioDeadTrigger:
	default:
		return nil, fmt.Errorf("unknown scenario %q", scenario)
	}
	return &Site{scenario: scenario}, nil
}

// Handler returns the http.Handler for the site.
func (s *Site) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/claim", s.handleClaim)
	mux.HandleFunc("/healthz", s.handleHealth)
	return withRequestLogging(mux)
}

// Claims reports how many claim submissions the site has received.
func (s *Site) Claims() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

func (s *Site) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, s.state()); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Site) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	s.claims++
	count := s.claims
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"claims": count})
}

func (s *Site) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Site) state() pageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := pageState{TriggerPresent: true, TriggerWired: true, Message: availableMessage}
	switch s.scenario {
	case ScenarioLogin:
		return pageState{LoginVisible: true}
	case ScenarioCooldown:
		st.Message = cooldownMessage
	case ScenarioDialogOpen:
		st.DialogOpen = true
	case ScenarioNoTrigger:
		st.TriggerPresent = false
	case ScenarioDeadTrigger:
		st.TriggerWired = false
	}
	if s.claims > 0 {
		st.Message = cooldownMessage
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
