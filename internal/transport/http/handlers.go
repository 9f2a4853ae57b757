package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/domain"
	"mcq-queue-service/internal/transport/command"
)

type Handler struct {
	admission *app.AdmissionService
	importer  *app.Importer
	status    StatusSource
	observer  SubmissionObserver
	logger    *zap.Logger
	maxUpload int64
}

type submitRequest struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index"`
	Uploader     string   `json:"uploader"`
	// Text takes the chat upload format instead of the structured fields.
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type healthResponse struct {
	OK bool `json:"ok"`
	domain.Status
}

// Health is the liveness probe. It reads state only.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Status: status})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status(r.Context()))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	var sub domain.Submission
	if strings.TrimSpace(req.Text) != "" {
		parsed, err := command.Parse(req.Text, req.Uploader)
		if err != nil {
			h.observe(err)
			h.writeError(w, err)
			return
		}
		sub = parsed
	} else {
		if req.CorrectIndex == nil {
			err := domain.NewValidationError("correct_index", "is required", nil)
			h.observe(err)
			h.writeError(w, err)
			return
		}
		sub = domain.Submission{
			Question:     req.Question,
			Options:      req.Options,
			CorrectIndex: *req.CorrectIndex,
			Uploader:     req.Uploader,
		}
	}

	item, err := h.admission.Submit(r.Context(), sub)
	h.observe(err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := app.ListFilter(r.URL.Query().Get("status"))
	switch filter {
	case app.ListAll, app.ListPending, app.ListPosted, app.ListParked:
	case "all":
		filter = app.ListAll
	default:
		h.writeError(w, domain.NewValidationError("status", "must be one of pending, posted, parked, all", string(filter)))
		return
	}
	items, err := h.admission.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.MCQ{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	item, err := h.admission.Preview(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.admission.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.admission.Remove(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import accepts a multipart upload with the workbook in the "file" field.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "import disabled"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart upload", Field: "file"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file", Field: "file"})
		return
	}
	defer file.Close()

	result, err := h.importer.ImportSpreadsheet(r.Context(), file, r.FormValue("uploader"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	for range result.Imported {
		h.observe(nil)
	}
	writeJSON(w, http.StatusOK, result)
}

type announceRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := h.admission.Announce(r.Context(), req.Text); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, domain.NewValidationError("id", "must be a positive integer", raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) observe(err error) {
	if h.observer != nil {
		h.observer.ObserveSubmission("http", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAnnouncementsUnsupported):
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNoSubscribers):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
