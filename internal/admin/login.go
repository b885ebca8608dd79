package admin

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/session"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if manager := session.FromContext(r.Context()); manager != nil && manager.State().IsAuthenticated {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/login.html", "Sign in", loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	manager := session.FromContext(r.Context())
	if manager == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", loginPageData{Form: form, Errors: fieldErrors(err)})
		return
	}

	ctx := auth.WithClientIP(r.Context(), remoteIP(r))
	_, err := manager.Login(ctx, auth.Credentials{Email: form.Email, Password: form.Password})
	var apiErr *auth.APIError
	switch {
	case err == nil, errors.Is(err, session.ErrSuperseded):
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests:
		form.Password = ""
		h.render(w, r, http.StatusTooManyRequests, "pages/login.html", "Sign in", loginPageData{
			Form:   form,
			Errors: map[string]string{"general": "Too many sign-in attempts. Please wait a minute and try again."},
		})
	case errors.Is(err, shared.ErrInvalidCredentials):
		message := "Invalid email or password"
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) && authErr.Message != "" {
			message = authErr.Message
		}
		form.Password = ""
		h.render(w, r, http.StatusUnauthorized, "pages/login.html", "Sign in", loginPageData{
			Form:   form,
			Errors: map[string]string{"general": message},
		})
	default:
		h.logger.Error("login", slog.Any("error", err))
		form.Password = ""
		h.render(w, r, http.StatusServiceUnavailable, "pages/login.html", "Sign in", loginPageData{
			Form:   form,
			Errors: map[string]string{"general": "Sign-in is unavailable right now. Please try again shortly."},
		})
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if manager := session.FromContext(r.Context()); manager != nil {
		manager.Logout(r.Context())
		if client := shared.ClientFromContext(r.Context()); client != nil {
			h.registry.Forget(client.ID)
		}
	}
	http.Redirect(w, r, h.rbac.LoginURL(), http.StatusSeeOther)
}

// remoteIP is the browser address as resolved by the RealIP middleware.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
