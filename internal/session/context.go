package session

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-site/internal/rbac"
)

type managerContextKey struct{}

// ContextWithManager stores the client's Manager in context.
func ContextWithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerContextKey{}, m)
}

// FromContext extracts the Manager from context.
func FromContext(ctx context.Context) *Manager {
	m, _ := ctx.Value(managerContextKey{}).(*Manager)
	return m
}

// ResolveSubject implements rbac.SubjectResolver. Requests without a Manager are anonymous.
func ResolveSubject(r *http.Request) rbac.Subject {
	m := FromContext(r.Context())
	if m == nil {
		return rbac.Subject{}
	}
	return m.Subject()
}
