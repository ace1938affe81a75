package handler

import (
	"time"

	"github.com/deskworks/dashboard/internal/core/domain"
)

// --- Requests ---

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	Username    string `json:"username"     validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type switchRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// --- Responses ---

type identityView struct {
	Username              string        `json:"username"`
	DisplayName           string        `json:"display_name"`
	Email                 string        `json:"email"`
	Roles                 []domain.Role `json:"roles"`
	RequiresPasswordReset bool          `json:"requires_password_reset"`
}

// sessionView is the client-visible session: the public snapshot plus the
// landing route of the current role.
type sessionView struct {
	State           domain.SessionState `json:"state"`
	Identity        *identityView       `json:"identity"`
	CurrentRole     domain.Role         `json:"current_role,omitempty"`
	AvailableRoles  []domain.Role       `json:"available_roles"`
	IsAuthenticated bool                `json:"is_authenticated"`
	Loading         bool                `json:"loading"`
	Error           string              `json:"error,omitempty"`
	Home            string              `json:"home,omitempty"`
}

type loginResponse struct {
	RequiresPasswordReset bool        `json:"requires_password_reset"`
	Session               sessionView `json:"session"`
}

type activityItem struct {
	ID        string                  `json:"id"`
	Kind      domain.SessionEventKind `json:"kind"`
	State     domain.SessionState     `json:"state"`
	Role      domain.Role             `json:"role,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Timestamp string                  `json:"timestamp"`
}

type activityResponse struct {
	Username string         `json:"username"`
	Events   []activityItem `json:"events"`
}

type pageResponse struct {
	Page        string      `json:"page"`
	RedirectURI string      `json:"redirect_uri,omitempty"`
	Session     sessionView `json:"session"`
}

func toSessionView(snap domain.Snapshot) sessionView {
	pub := snap.Public()
	v := sessionView{
		State:           pub.State,
		CurrentRole:     pub.CurrentRole,
		AvailableRoles:  pub.AvailableRoles,
		IsAuthenticated: pub.IsAuthenticated,
		Loading:         pub.Loading,
		Error:           pub.Error,
		Home:            pub.CurrentRole.Home(),
	}
	if v.AvailableRoles == nil {
		v.AvailableRoles = []domain.Role{}
	}
	if id := pub.Identity; id != nil {
		v.Identity = &identityView{
			Username:              id.Username,
			DisplayName:           id.DisplayName,
			Email:                 id.Email,
			Roles:                 id.Roles,
			RequiresPasswordReset: id.RequiresPasswordReset,
		}
	}
	return v
}

func toActivityItems(events []domain.SessionEvent) []activityItem {
	items := make([]activityItem, 0, len(events))
	for _, ev := range events {
		items = append(items, activityItem{
			ID:        ev.ID,
			Kind:      ev.Kind,
			State:     ev.State,
			Role:      ev.Role,
			Error:     ev.Error,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return items
}
