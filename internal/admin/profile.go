package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/session"
)

type profileForm struct {
	Name  string `validate:"required,max=120"`
	Email string `validate:"required,email"`
}

type passwordForm struct {
	CurrentPassword string `validate:"required"`
	NewPassword     string `validate:"required,min=8,nefield=CurrentPassword"`
}

type profilePageData struct {
	User   *auth.User
	Errors map[string]string
	Notice string
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	state := session.FromContext(r.Context()).State()
	h.render(w, r, http.StatusOK, "pages/profile.html", "Profile", profilePageData{User: state.User})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	manager := session.FromContext(r.Context())
	form := profileForm{
		Name:  strings.TrimSpace(r.PostFormValue("name")),
		Email: strings.TrimSpace(r.PostFormValue("email")),
	}
	current := manager.State().User
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, http.StatusBadRequest, "pages/profile.html", "Profile", profilePageData{User: current, Errors: fieldErrors(err)})
		return
	}

	user, err := manager.UpdateProfile(r.Context(), auth.ProfileUpdate{Name: form.Name, Email: form.Email})
	if err != nil {
		if sessionLost(err) {
			http.Redirect(w, r, h.rbac.LoginURL(), http.StatusSeeOther)
			return
		}
		status, errs := h.backendErrors(err, "Email")
		h.render(w, r, status, "pages/profile.html", "Profile", profilePageData{User: current, Errors: errs})
		return
	}
	h.render(w, r, http.StatusOK, "pages/profile.html", "Profile", profilePageData{User: user, Notice: "Profile saved"})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	manager := session.FromContext(r.Context())
	current := manager.State().User
	form := passwordForm{
		CurrentPassword: r.PostFormValue("current_password"),
		NewPassword:     r.PostFormValue("new_password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, http.StatusBadRequest, "pages/profile.html", "Profile", profilePageData{User: current, Errors: fieldErrors(err)})
		return
	}

	err := manager.ChangePassword(r.Context(), auth.PasswordChange{CurrentPassword: form.CurrentPassword, NewPassword: form.NewPassword})
	if err != nil {
		if sessionLost(err) {
			http.Redirect(w, r, h.rbac.LoginURL(), http.StatusSeeOther)
			return
		}
		status, errs := h.backendErrors(err, "CurrentPassword")
		h.render(w, r, status, "pages/profile.html", "Profile", profilePageData{User: current, Errors: errs})
		return
	}
	h.render(w, r, http.StatusOK, "pages/profile.html", "Profile", profilePageData{User: current, Notice: "Password changed"})
}

// backendErrors maps an identity rejection onto the form; field receives 4xx messages.
func (h *Handler) backendErrors(err error, field string) (int, map[string]string) {
	var apiErr *auth.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status, map[string]string{field: apiErr.Message}
	}
	h.logger.Error("identity request", slog.Any("error", err))
	return http.StatusBadGateway, map[string]string{"general": "The identity service is unavailable. Please try again shortly."}
}
