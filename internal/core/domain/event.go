package domain

import "time"

// SessionEventKind classifies an audited session transition.
type SessionEventKind string

const (
	EventLogin         SessionEventKind = "login"
	EventLoginFailed   SessionEventKind = "login_failed"
	EventPasswordReset SessionEventKind = "password_reset"
	EventRoleSwitched  SessionEventKind = "role_switched"
	EventLogout        SessionEventKind = "logout"
	EventRevalidated   SessionEventKind = "revalidated"
	EventExpired       SessionEventKind = "expired"
)

// SessionEvent records a committed (or failed) session transition.
type SessionEvent struct {
	ID        string
	SessionID string
	Username  string
	Kind      SessionEventKind
	State     SessionState
	Role      Role   // optional
	Error     string // optional
	Timestamp time.Time
}
