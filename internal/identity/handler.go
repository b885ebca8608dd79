package identity

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

type claimsKey struct{}

// Handler wires the identity REST endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validator  *validator.Validate
	loginLimit int
}

// NewHandler constructs a Handler. loginLimit caps login attempts per browser address per minute;
// zero disables it.
func NewHandler(logger *slog.Logger, service *Service, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), loginLimit: loginLimit}
}

// MountRoutes registers identity routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		if h.loginLimit > 0 {
			r.With(httprate.Limit(h.loginLimit, time.Minute, httprate.WithKeyFuncs(loginKey))).Post("/login", h.login)
		} else {
			r.Post("/login", h.login)
		}
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireBearer)
			r.Get("/me", h.me)
			r.Patch("/profile", h.updateProfile)
			r.Patch("/password", h.changePassword)
		})
	})
}

// loginKey keys the login limit by browser address. Logins relayed by the admin over
// loopback name the browser in auth.ClientIPHeader; elsewhere the header is ignored.
func loginKey(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		if forwarded := strings.TrimSpace(r.Header.Get(auth.ClientIPHeader)); forwarded != "" {
			return "relay:" + forwarded, nil
		}
	}
	return httprate.KeyByIP(r)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	result, err := h.service.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Info("login rejected", slog.String("email", creds.Email))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid email or password")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := httpx.DecodeJSON(r, &body); err != nil || h.validator.Struct(body) != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "refreshToken is required")
		return
	}
	result, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Refresh token is invalid or expired")
			return
		}
		h.logger.Error("refresh", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	_ = httpx.DecodeJSON(r, &body)
	if err := h.service.Logout(r.Context(), body.RefreshToken); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := h.service.CurrentUser(r.Context(), claims.Subject)
	if err != nil {
		h.respondAccountError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var update auth.ProfileUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(update); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), claimsFromContext(r.Context()).Subject, update)
	if err != nil {
		h.respondAccountError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var change auth.PasswordChange
	if err := httpx.DecodeJSON(r, &change); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(change); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	err := h.service.ChangePassword(r.Context(), claimsFromContext(r.Context()).Subject, change)
	if err != nil {
		h.respondAccountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondAccountError keeps 401 for token problems only; clients treat 401 as "refresh and retry".
func (h *Handler) respondAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidToken):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Account is unavailable")
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Current password is incorrect")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "Email is already in use")
	default:
		h.logger.Error("identity request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Missing bearer token")
			return
		}
		claims, err := h.service.Verify(token)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Access token is invalid or expired")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	if claims == nil {
		return &Claims{}
	}
	return claims
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
