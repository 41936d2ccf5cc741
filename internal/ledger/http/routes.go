package ledgerhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// MountRoutes registers the ledger endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/ledger/{entityID}", func(r chi.Router) {
		r.Get("/rows", h.handleRows)
		r.Put("/rows", h.handleImportRows)
		r.Get("/criteria", h.handleGetCriteria)
		r.Put("/criteria", h.handlePutCriteria)
		r.Delete("/criteria", h.handleResetCriteria)
		r.Get("/periods", h.handlePeriods)
		r.Get("/vouchers/{voucherNo}", h.handleVoucher)
		r.Get("/export.csv", h.handleExportCSV)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Post("/assistant", h.handleConverse)
			gr.Post("/assistant/tasks", h.handleConverseTask)
			gr.Post("/compliance", h.handleCompliance)
			gr.Post("/compliance/tasks", h.handleComplianceTask)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.ID != "" {
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
