// Package httpapi exposes the ledger over a JSON HTTP surface: user
// registration, quest management, completions, and the event journal.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/service"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// callerHeader carries the completer module's address on completion calls.
const callerHeader = "X-Caller-Address"

const defaultEventPageSize = 100

// Handler serves the ledger API.
type Handler struct {
	authority *service.Authority
	registry  *service.Registry
	events    storage.EventStore
	mux       *http.ServeMux
}

// New builds the API handler.
func New(authority *service.Authority, registry *service.Registry, events storage.EventStore) *Handler {
	h := &Handler{
		authority: authority,
		registry:  registry,
		events:    events,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /v1/users", h.registerUser)
	h.mux.HandleFunc("GET /v1/users/{address}", h.getProgress)
	h.mux.HandleFunc("POST /v1/quests", h.createQuest)
	h.mux.HandleFunc("GET /v1/quests/{id}", h.getQuest)
	h.mux.HandleFunc("PUT /v1/quests/{id}/active", h.setQuestActive)
	h.mux.HandleFunc("POST /v1/quests/{id}/complete", h.completeQuest)
	h.mux.HandleFunc("GET /v1/events", h.listEvents)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type registerUserRequest struct {
	Address domain.Address `json:"address"`
}

type progressResponse struct {
	ID        uint64         `json:"id"`
	User      domain.Address `json:"user"`
	XP        uint64         `json:"xp"`
	Level     uint32         `json:"level"`
	Completed []uint64       `json:"completed"`
	CreatedAt time.Time      `json:"created_at"`
}

func toProgressResponse(p domain.UserProgress) progressResponse {
	completed := p.Completed
	if completed == nil {
		completed = []uint64{}
	}
	return progressResponse{
		ID:        p.ID,
		User:      p.User,
		XP:        p.XP,
		Level:     p.Level,
		Completed: completed,
		CreatedAt: p.CreatedAt,
	}
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, perrors.New(perrors.CodeInvalidArgument, "request body is not valid JSON"))
		return
	}
	if req.Address.IsZero() {
		writeError(w, perrors.New(perrors.CodeAddressInvalid, "address is required"))
		return
	}

	progress, err := h.authority.RegisterUser(r.Context(), req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProgressResponse(progress))
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	address, err := domain.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, err)
		return
	}

	progress, err := h.authority.Progress(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(progress))
}

type createQuestRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	XPReward    uint64         `json:"xp_reward"`
	Type        string         `json:"type"`
	Creator     domain.Address `json:"creator"`
}

type questResponse struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	XPReward    uint64         `json:"xp_reward"`
	Active      bool           `json:"active"`
	Creator     domain.Address `json:"creator"`
	Type        string         `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toQuestResponse(q domain.Quest) questResponse {
	return questResponse{
		ID:          q.ID,
		Name:        q.Name,
		Description: q.Description,
		XPReward:    q.XPReward,
		Active:      q.Active,
		Creator:     q.Creator,
		Type:        q.Type.String(),
		CreatedAt:   q.CreatedAt,
	}
}

func (h *Handler) createQuest(w http.ResponseWriter, r *http.Request) {
	var req createQuestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, perrors.New(perrors.CodeInvalidArgument, "request body is not valid JSON"))
		return
	}

	questType, err := domain.ParseQuestType(req.Type)
	if err != nil {
		writeError(w, err)
		return
	}

	quest, err := h.registry.CreateQuest(r.Context(), domain.CreateQuestInput{
		Name:        req.Name,
		Description: req.Description,
		XPReward:    req.XPReward,
		Type:        questType,
		Creator:     req.Creator,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuestResponse(quest))
}

func (h *Handler) getQuest(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	quest, err := h.registry.GetQuest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestResponse(quest))
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) setQuestActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, perrors.New(perrors.CodeInvalidArgument, "request body is not valid JSON"))
		return
	}

	if err := h.registry.SetQuestActive(r.Context(), id, req.Active); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeQuestRequest struct {
	User domain.Address `json:"user"`
}

func (h *Handler) completeQuest(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	caller, err := domain.ParseAddress(r.Header.Get(callerHeader))
	if err != nil {
		writeError(w, perrors.New(perrors.CodeAddressInvalid, "caller address header is required"))
		return
	}

	var req completeQuestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, perrors.New(perrors.CodeInvalidArgument, "request body is not valid JSON"))
		return
	}

	if err := h.authority.CompleteQuest(r.Context(), caller, id, req.User); err != nil {
		writeError(w, err)
		return
	}

	progress, err := h.authority.Progress(r.Context(), req.User)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(progress))
}

type eventResponse struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	afterSeq := uint64(0)
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, perrors.New(perrors.CodeInvalidArgument, "after must be a sequence number"))
			return
		}
		afterSeq = parsed
	}

	limit := defaultEventPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, perrors.New(perrors.CodeInvalidArgument, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.events.ListEvents(r.Context(), afterSeq, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, evt := range events {
		out = append(out, toEventResponse(evt))
	}
	writeJSON(w, http.StatusOK, out)
}

func toEventResponse(evt event.Event) eventResponse {
	return eventResponse{
		Seq:       evt.Seq,
		Timestamp: evt.Timestamp,
		Type:      string(evt.Type),
		Payload:   json.RawMessage(evt.PayloadJSON),
	}
}

func parseQuestID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, perrors.WithMetadata(perrors.CodeInvalidArgument, "quest id must be a positive integer", map[string]string{"value": raw})
	}
	return id, nil
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var domainErr *perrors.Error
	if errors.As(err, &domainErr) {
		writeJSON(w, domainErr.HTTPStatus(), errorResponse{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Meta:    domainErr.Metadata,
		})
		return
	}
	log.Printf("ledger api internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("ledger api encode response: %v", err)
	}
}
