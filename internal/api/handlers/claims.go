// Package handlers provides HTTP handlers for the adjudicator API.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/adjudication"
	"github.com/mark64oswald/healthsim-hello/internal/api/middleware"
	"github.com/mark64oswald/healthsim-hello/internal/domain/claim"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/ledger"
	"github.com/mark64oswald/healthsim-hello/internal/observability/metrics"
	"github.com/mark64oswald/healthsim-hello/pkg/batch"
)

// ClaimHandler handles claim submission endpoints
type ClaimHandler struct {
	engine   *adjudication.Engine
	members  *member.Store
	ledger   *ledger.Ledger
	pool     *batch.Pool
	maxBatch int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewClaimHandler creates a new handler
func NewClaimHandler(engine *adjudication.Engine, members *member.Store, led *ledger.Ledger, pool *batch.Pool, maxBatch int, m *metrics.Metrics, logger *zap.Logger) *ClaimHandler {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &ClaimHandler{
		engine:   engine,
		members:  members,
		ledger:   led,
		pool:     pool,
		maxBatch: maxBatch,
		metrics:  m,
		logger:   logger,
	}
}

// Routes returns the handler routes
func (h *ClaimHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)
	r.Post("/batch", h.SubmitBatch)
	r.Get("/{id}", h.Get)
	return r
}

// Submit handles POST /claims. Every business outcome, paid, rejected, or
// duplicate, is a 200; non-2xx codes are reserved for input failures.
func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("claim-handler")
	ctx, span := tracer.Start(ctx, "submit_claim")
	defer span.End()

	var c claim.PharmacyClaim
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("claim_id", c.ClaimID))

	m, err := h.members.Get(c.MemberID)
	if err != nil {
		jsonError(w, fmt.Sprintf("member %s not found", c.MemberID), http.StatusNotFound)
		return
	}

	resp, err := h.engine.Adjudicate(ctx, &c, m)
	if err != nil {
		h.writeAdjudicationError(w, err)
		return
	}

	h.logger.Info("claim processed",
		zap.String("claim_id", resp.ClaimID),
		zap.String("status", string(resp.Status)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// BatchRequest is the request body for a batch submission
type BatchRequest struct {
	Claims []claim.PharmacyClaim `json:"claims"`
}

// BatchResult pairs a claim id with its response or its input error
type BatchResult struct {
	ClaimID  string                      `json:"claim_id"`
	Response *claim.AdjudicationResponse `json:"response,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// BatchResponse lists per-claim results in submission order
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// SubmitBatch handles POST /claims/batch
func (h *ClaimHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("claim-handler")
	ctx, span := tracer.Start(ctx, "submit_batch")
	defer span.End()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Claims) == 0 {
		jsonError(w, "claims is required", http.StatusBadRequest)
		return
	}
	if len(req.Claims) > h.maxBatch {
		jsonError(w, fmt.Sprintf("batch size %d exceeds maximum %d", len(req.Claims), h.maxBatch), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("batch.size", len(req.Claims)))

	jobs := make([]batch.Job, len(req.Claims))
	for i := range req.Claims {
		// A missing member surfaces as that claim's outcome, not a batch
		// failure.
		m, err := h.members.Get(req.Claims[i].MemberID)
		if err != nil {
			m = nil
		}
		jobs[i] = batch.Job{Claim: &req.Claims[i], Member: m}
	}

	if h.metrics != nil {
		h.metrics.BatchClaimsInFlight.Add(float64(len(jobs)))
		defer h.metrics.BatchClaimsInFlight.Sub(float64(len(jobs)))
	}
	outcomes := h.pool.Run(ctx, jobs)

	results := make([]BatchResult, len(outcomes))
	for i, out := range outcomes {
		results[i] = BatchResult{ClaimID: out.ClaimID}
		if out.Err != nil {
			results[i].Error = out.Err.Error()
			continue
		}
		results[i].Response = out.Response
	}

	h.logger.Info("batch processed",
		zap.Int("claims", len(results)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusOK, BatchResponse{Results: results})
}

// Get handles GET /claims/{id}, returning the recorded application for a
// previously paid claim.
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	app, ok := h.ledger.Lookup(id)
	if !ok {
		jsonError(w, "claim not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *ClaimHandler) writeAdjudicationError(w http.ResponseWriter, err error) {
	var verr *claim.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, ledger.ErrNoApplication), errors.Is(err, ledger.ErrAlreadyReversed):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("adjudication failed", zap.Error(err))
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}
