package tokenhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/qbportal/internal/credentials"
	"github.com/odyssey-erp/qbportal/internal/platform/httpx"
	"github.com/odyssey-erp/qbportal/internal/shared"
	"github.com/odyssey-erp/qbportal/internal/tokens"
)

// Connector is the token manager surface used by the connect endpoints.
type Connector interface {
	AuthorizationURL(ctx context.Context, userID string) (string, error)
	Complete(ctx context.Context, state, code, realmID string) (credentials.Credential, error)
	Status(ctx context.Context, userID string) (tokens.Status, error)
}

// Handler serves the QuickBooks connect flow.
type Handler struct {
	logger      *slog.Logger
	connector   Connector
	frontendURL string
	validator   *validator.Validate
}

// NewHandler constructs a Handler. frontendURL receives the browser after
// the callback with a status query parameter.
func NewHandler(logger *slog.Logger, connector Connector, frontendURL string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		connector:   connector,
		frontendURL: frontendURL,
		validator:   validator.New(),
	}
}

// MountRoutes registers /connect, /callback and /status. requireUser guards
// the routes that need an authenticated portal user; the callback is reached
// by Intuit's redirect and is bound to the user through the state parameter.
func (h *Handler) MountRoutes(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.Get("/callback", h.handleCallback)
	r.Group(func(gr chi.Router) {
		if requireUser != nil {
			gr.Use(requireUser)
		}
		gr.Get("/connect", h.handleConnect)
		gr.Get("/status", h.handleStatus)
	})
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	authURL, err := h.connector.AuthorizationURL(r.Context(), userID)
	if err != nil {
		h.logger.Error("start quickbooks connect", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		httpx.JSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

type callbackParams struct {
	Code    string `validate:"required,max=1024"`
	State   string `validate:"required,uuid"`
	RealmID string `validate:"required,numeric,max=32"`
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		h.logger.Info("quickbooks consent declined", slog.String("error", denied))
		h.redirectFrontend(w, r, "error", denied)
		return
	}

	params := callbackParams{
		Code:    q.Get("code"),
		State:   q.Get("state"),
		RealmID: q.Get("realmId"),
	}
	if err := h.validator.Struct(params); err != nil {
		fields := make([]string, 0)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields = append(fields, fieldErr.Field())
			}
		}
		h.logger.Warn("invalid quickbooks callback", slog.Any("fields", fields))
		h.redirectFrontend(w, r, "error", "invalid_callback")
		return
	}

	cred, err := h.connector.Complete(r.Context(), params.State, params.Code, params.RealmID)
	if err != nil {
		reason := "exchange_failed"
		if errors.Is(err, tokens.ErrInvalidState) {
			reason = "invalid_state"
		}
		h.logger.Warn("complete quickbooks connect", slog.String("reason", reason), slog.Any("error", err))
		h.redirectFrontend(w, r, "error", reason)
		return
	}
	h.logger.Info("quickbooks callback completed", slog.String("user_id", cred.UserID), slog.String("realm_id", cred.RealmID))
	h.redirectFrontend(w, r, "connected", "")
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	status, err := h.connector.Status(r.Context(), userID)
	if err != nil {
		h.logger.Error("load quickbooks status", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) redirectFrontend(w http.ResponseWriter, r *http.Request, status, reason string) {
	target, err := url.Parse(h.frontendURL)
	if err != nil || h.frontendURL == "" {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	q.Set("status", status)
	if reason != "" {
		q.Set("reason", reason)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
