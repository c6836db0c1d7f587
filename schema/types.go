package schema

import "time"

// DiscoveredVia tells how the owned browser process was identified.
type DiscoveredVia string

const (
	// DiscoveredViaPidFile means the PID came from the persisted pid file.
	DiscoveredViaPidFile DiscoveredVia = "pid-file"
	// DiscoveredViaPortScan means the PID was resolved from the listener on the control port.
	DiscoveredViaPortScan DiscoveredVia = "port-scan"
	// DiscoveredViaFreshLaunch means the process was started by this run.
	DiscoveredViaFreshLaunch DiscoveredVia = "fresh-launch"
)

// OwnedProcess identifies the one browser process this tool may terminate.
// It is never inferred from process names, only from the persisted PID or
// from the process bound to the control port.
type OwnedProcess struct {
	PID int
	Via DiscoveredVia
}

// RunIntent captures the per-run lifecycle preferences.
type RunIntent struct {
	ReuseIfPossible bool
	StopOnExit      bool
}

// Outcome is the terminal result of a claim run.
type Outcome string

const (
	// OutcomeClaimed means the claim button was invoked successfully.
	OutcomeClaimed Outcome = "claimed"
	// OutcomeCooldown means the reward is not yet available again.
	OutcomeCooldown Outcome = "cooldown"
	// OutcomeLoginRequired means a manual sign-in is needed first.
	OutcomeLoginRequired Outcome = "login-required"
	// OutcomeDialogNotFound means the claim dialog could not be reached.
	OutcomeDialogNotFound Outcome = "dialog-not-found"
	// OutcomeError means the claim sequence failed unexpectedly.
	OutcomeError Outcome = "error"
)

// RunReport summarizes one claim run. It is returned and logged, never persisted.
type RunReport struct {
	Outcome Outcome
	// Message is the claim dialog text, when one was captured.
	Message string
	// NextAvailableAt is the parsed cooldown timestamp; zero when the
	// cooldown text matched but did not parse, or when not on cooldown.
	NextAvailableAt time.Time
	// Detail carries failure context for error outcomes.
	Detail string
}
