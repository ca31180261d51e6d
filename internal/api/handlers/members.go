package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/api/middleware"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/ledger"
	"github.com/mark64oswald/healthsim-hello/internal/observability/metrics"
)

// MemberHandler handles member registry endpoints
type MemberHandler struct {
	store   *member.Store
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMemberHandler creates a new handler
func NewMemberHandler(store *member.Store, led *ledger.Ledger, m *metrics.Metrics, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{store: store, ledger: led, metrics: m, logger: logger}
}

// Routes returns the handler routes
func (h *MemberHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Register)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/medications", h.AddMedication)
	return r
}

// RegisterResponse is the response for registering a member
type RegisterResponse struct {
	MemberID  string    `json:"member_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Register handles POST /members
func (h *MemberHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var m member.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.Put(&m); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.metrics != nil {
		h.metrics.MembersEnrolled.Set(float64(h.store.Count()))
	}

	h.logger.Info("member registered",
		zap.String("member_id", m.MemberID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusCreated, RegisterResponse{
		MemberID:  m.MemberID,
		CreatedAt: time.Now().UTC(),
	})
}

// List handles GET /members. Accumulators are the ledger's live values.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members := h.store.Snapshot()
	for _, m := range members {
		m.Accumulators = h.ledger.Account(m)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(members),
		"members": members,
	})
}

// Get handles GET /members/{id}. Accumulators come from the ledger so the
// response reflects every claim paid since enrollment.
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.store.Get(id)
	if err != nil {
		jsonError(w, "member not found", http.StatusNotFound)
		return
	}
	m.Accumulators = h.ledger.Account(m)
	writeJSON(w, http.StatusOK, m)
}

// AddMedication handles POST /members/{id}/medications
func (h *MemberHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var med member.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.AddMedication(id, med); err != nil {
		if errors.Is(err, member.ErrNotFound) {
			jsonError(w, "member not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.store.Get(id)
	if err != nil {
		jsonError(w, "member not found", http.StatusNotFound)
		return
	}

	h.logger.Info("medication added",
		zap.String("member_id", id),
		zap.String("ndc", med.NDC),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"member_id":   id,
		"medications": updated.Medications,
	})
}
