package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

func assertInvariant(t *testing.T, s State) {
	t.Helper()
	assert.Equal(t, s.User != nil, s.IsAuthenticated, "isAuthenticated tracks user")
	assert.NotNil(t, s.Permissions)
	if s.User == nil {
		assert.Empty(t, s.Permissions)
		return
	}
	assert.Equal(t, s.User.Permissions, s.Permissions)
}

func TestReduceMaintainsInvariant(t *testing.T) {
	admin := auth.User{ID: "1", Role: shared.RoleAdmin}.Normalize()
	viewer := auth.User{ID: "2", Role: shared.RoleViewer}.Normalize()

	sequences := map[string][]event{
		"init then login":        {{kind: eventInit}, unauthenticated("No access token found"), {kind: eventLoginStarted}, authenticated(admin)},
		"resume then update":     {{kind: eventInit}, authenticated(admin), {kind: eventUserUpdated, user: viewer}},
		"update while anonymous": {{kind: eventInit}, unauthenticated(""), {kind: eventUserUpdated, user: viewer}},
		"login over session":   {authenticated(admin), {kind: eventLoginStarted}, unauthenticated("Invalid email or password")},
		"nil user":               {authenticated(nil)},
	}

	for name, events := range sequences {
		t.Run(name, func(t *testing.T) {
			s := initialState()
			assertInvariant(t, s)
			for _, ev := range events {
				s = reduce(s, ev)
				assertInvariant(t, s)
			}
		})
	}
}

func TestReduceTransitions(t *testing.T) {
	admin := auth.User{ID: "1", Role: shared.RoleAdmin}.Normalize()

	s := reduce(initialState(), event{kind: eventInit})
	assert.Equal(t, StatusLoading, s.Status)
	assert.True(t, s.IsLoading)

	s = reduce(s, authenticated(admin))
	assert.Equal(t, StatusAuthenticated, s.Status)
	assert.False(t, s.IsLoading)
	assert.Equal(t, shared.RolePermissions(shared.RoleAdmin), s.Permissions)

	s = reduce(s, unauthenticated("Session expired"))
	assert.Equal(t, StatusUnauthenticated, s.Status)
	assert.Equal(t, "Session expired", s.Error)
	assert.Nil(t, s.User)

	updated := reduce(s, event{kind: eventUserUpdated, user: admin})
	assert.Equal(t, s, updated, "updates are ignored while signed out")
}

func TestStatusMarshalsByName(t *testing.T) {
	text, err := StatusAuthenticated.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "authenticated", string(text))
	assert.Equal(t, "unknown", Status(42).String())
}
