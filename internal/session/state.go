package session

import (
	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// Status is the lifecycle position of a session.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a snapshot of one session. IsAuthenticated is true exactly when User
// is set, and Permissions always equals the user's permissions or is empty.
type State struct {
	Status          Status              `json:"status"`
	User            *auth.User          `json:"user"`
	IsAuthenticated bool                `json:"isAuthenticated"`
	IsLoading       bool                `json:"isLoading"`
	Error           string              `json:"error,omitempty"`
	Permissions     []shared.Permission `json:"permissions"`
}

func initialState() State {
	return State{Status: StatusUninitialized, Permissions: []shared.Permission{}}
}

type eventKind int

const (
	eventInit eventKind = iota
	eventLoginStarted
	eventAuthenticated
	eventUnauthenticated
	eventUserUpdated
)

type event struct {
	kind    eventKind
	user    *auth.User
	message string
}

func authenticated(user *auth.User) event {
	return event{kind: eventAuthenticated, user: user}
}

func unauthenticated(message string) event {
	return event{kind: eventUnauthenticated, message: message}
}

// reduce is the only place state changes. It never mutates its input.
func reduce(s State, ev event) State {
	switch ev.kind {
	case eventInit:
		return State{Status: StatusLoading, IsLoading: true, Permissions: []shared.Permission{}}
	case eventLoginStarted:
		s.Status = StatusLoading
		s.IsLoading = true
		s.Error = ""
		return s
	case eventAuthenticated:
		if ev.user == nil {
			return reduce(s, unauthenticated("Authentication failed"))
		}
		return State{
			Status:          StatusAuthenticated,
			User:            ev.user,
			IsAuthenticated: true,
			Permissions:     permissionsOf(ev.user),
		}
	case eventUnauthenticated:
		return State{Status: StatusUnauthenticated, Error: ev.message, Permissions: []shared.Permission{}}
	case eventUserUpdated:
		if !s.IsAuthenticated || ev.user == nil {
			return s
		}
		s.User = ev.user
		s.Permissions = permissionsOf(ev.user)
		return s
	default:
		return s
	}
}

func permissionsOf(user *auth.User) []shared.Permission {
	out := make([]shared.Permission, len(user.Permissions))
	copy(out, user.Permissions)
	return out
}
