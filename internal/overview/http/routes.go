package overviewhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/qbportal/internal/shared"
)

// MountRoutes registers the overview endpoints behind requireUser.
func (h *Handler) MountRoutes(r chi.Router, requireUser func(http.Handler) http.Handler) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Group(func(gr chi.Router) {
		if requireUser != nil {
			gr.Use(requireUser)
		}
		gr.Use(limiter)
		gr.Get("/overview", h.handleOverview)
		gr.Get("/overview/customers", h.handleCustomers)
		gr.Get("/overview/vendors", h.handleVendors)
		gr.Get("/overview/accounts", h.handleAccounts)
		gr.Get("/overview/reports/{name}", h.handleReport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if user := shared.UserIDFromContext(r.Context()); user != "" {
		return "user:" + user, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
