package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/api/middleware"
	"github.com/mark64oswald/healthsim-hello/internal/dur"
)

// ScreeningHandler exposes DUR screening without claim submission, for
// prescriber-side checks before a fill is attempted.
type ScreeningHandler struct {
	rules  *dur.RuleSet
	logger *zap.Logger
}

// NewScreeningHandler creates a new handler
func NewScreeningHandler(rules *dur.RuleSet, logger *zap.Logger) *ScreeningHandler {
	return &ScreeningHandler{rules: rules, logger: logger}
}

// Routes returns the handler routes
func (h *ScreeningHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/screen", h.Screen)
	return r
}

// Screen handles POST /dur/screen
func (h *ScreeningHandler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dur.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NDC == "" && req.GPI == "" {
		jsonError(w, "ndc or gpi is required", http.StatusBadRequest)
		return
	}
	if req.ServiceDate.IsZero() {
		req.ServiceDate = time.Now().UTC()
	}

	res := h.rules.Screen(req)

	h.logger.Info("dur screen",
		zap.String("ndc", req.NDC),
		zap.Bool("passed", res.Passed),
		zap.Int("alerts", len(res.Alerts)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusOK, res)
}
