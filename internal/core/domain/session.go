package domain

import (
	"slices"
	"time"
)

// SessionState is the lifecycle state of a dashboard session.
type SessionState string

const (
	StateAnonymous             SessionState = "anonymous"
	StatePasswordResetRequired SessionState = "password_reset_required"
	StateAuthenticated         SessionState = "authenticated"
)

// Transition names an operation on the session state machine.
type Transition string

const (
	TransitionLogin                 Transition = "login"
	TransitionRevalidate            Transition = "revalidate"
	TransitionCompletePasswordReset Transition = "complete_password_reset"
	TransitionSwitchRole            Transition = "switch_role"
	TransitionLogout                Transition = "logout"
	TransitionExpire                Transition = "expire"
)

var anyState = []SessionState{StateAnonymous, StatePasswordResetRequired, StateAuthenticated}

// legalFrom lists the states each transition may start from.
var legalFrom = map[Transition][]SessionState{
	TransitionLogin:                 {StateAnonymous},
	TransitionRevalidate:            anyState,
	TransitionCompletePasswordReset: {StatePasswordResetRequired},
	TransitionSwitchRole:            {StateAuthenticated},
	TransitionLogout:                anyState,
	TransitionExpire:                anyState,
}

// Allows reports whether transition t may start from state s.
func (s SessionState) Allows(t Transition) bool {
	return slices.Contains(legalFrom[t], s)
}

// Snapshot is the observable, persistable state of one session. It is written
// to the snapshot store on every committed transition.
type Snapshot struct {
	SessionID       string            `json:"session_id"`
	State           SessionState      `json:"state"`
	Identity        *IdentitySnapshot `json:"identity,omitempty"`
	CurrentRole     Role              `json:"current_role,omitempty"`
	AvailableRoles  []Role            `json:"available_roles"`
	IsAuthenticated bool              `json:"is_authenticated"`
	Loading         bool              `json:"loading"`
	Error           string            `json:"error,omitempty"`
	// BackendArtifact is the opaque identity-backend session (its cookies).
	BackendArtifact string    `json:"backend_artifact,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasBackendSession reports whether the backend issued a session artifact.
func (s Snapshot) HasBackendSession() bool {
	return s.BackendArtifact != ""
}

// Public returns a copy without transport secrets, safe to hand to clients.
func (s Snapshot) Public() Snapshot {
	s.BackendArtifact = ""
	s.AvailableRoles = slices.Clone(s.AvailableRoles)
	return s
}
