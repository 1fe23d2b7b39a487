package overviewhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/qbportal/internal/overview"
	"github.com/odyssey-erp/qbportal/internal/platform/httpx"
	"github.com/odyssey-erp/qbportal/internal/reports"
	"github.com/odyssey-erp/qbportal/internal/shared"
	"github.com/odyssey-erp/qbportal/internal/tokens"
)

// Problem types the dashboard switches on to show the reconnect prompt.
const (
	ProblemNotConnected = "/problems/quickbooks-not-connected"
	ProblemReconnect    = "/problems/quickbooks-reconnect-required"
	ProblemUpstream     = "/problems/quickbooks-report-unavailable"
)

// OverviewService defines the dashboard data contract used by the handler.
type OverviewService interface {
	FetchBusinessOverview(ctx context.Context, userID string) (overview.Bundle, error)
	RefreshBusinessOverview(ctx context.Context, userID string) (overview.Bundle, error)
	FetchCustomerStatus(ctx context.Context, userID string) (reports.AgingSummary, error)
	FetchVendorStatus(ctx context.Context, userID string) (reports.AgingSummary, error)
	FetchAccountsWithFeeds(ctx context.Context, userID string) (overview.AccountsView, error)
	FetchReport(ctx context.Context, userID, name string) (json.RawMessage, error)
}

// Handler serves the business overview endpoints.
type Handler struct {
	logger  *slog.Logger
	service OverviewService
}

// NewHandler constructs the overview HTTP handler.
func NewHandler(logger *slog.Logger, service OverviewService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	fetch := h.service.FetchBusinessOverview
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		fetch = h.service.RefreshBusinessOverview
	}
	bundle, err := fetch(r.Context(), userID)
	if err != nil {
		h.fail(w, r, userID, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bundle)
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	summary, err := h.service.FetchCustomerStatus(r.Context(), userID)
	if err != nil {
		h.fail(w, r, userID, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleVendors(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	summary, err := h.service.FetchVendorStatus(r.Context(), userID)
	if err != nil {
		h.fail(w, r, userID, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	view, err := h.service.FetchAccountsWithFeeds(r.Context(), userID)
	if err != nil {
		h.fail(w, r, userID, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	body, err := h.service.FetchReport(r.Context(), userID, chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, userID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := shared.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, userID string, err error) {
	switch {
	case errors.Is(err, tokens.ErrNotConnected):
		httpx.TypedProblem(w, http.StatusConflict, ProblemNotConnected, "QuickBooks not connected", "connect a QuickBooks company to load the dashboard")
	case errors.Is(err, tokens.ErrUpstreamRejected):
		h.logger.Warn("quickbooks authorization revoked", slog.String("user_id", userID))
		httpx.TypedProblem(w, http.StatusConflict, ProblemReconnect, "QuickBooks reconnect required", "the QuickBooks authorization is no longer valid")
	case errors.Is(err, overview.ErrUnknownReport):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error()+"; known reports: "+strings.Join(overview.ReportNames(), ", "))
	case errors.Is(err, overview.ErrReportUnavailable):
		h.logger.Warn("report unavailable", slog.String("user_id", userID), slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.TypedProblem(w, http.StatusBadGateway, ProblemUpstream, "Report unavailable", "QuickBooks did not return this report")
	case errors.Is(err, tokens.ErrRefreshFailed):
		h.logger.Warn("token refresh failed", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
	default:
		h.logger.Error("load overview", slog.String("user_id", userID), slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
