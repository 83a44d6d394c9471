package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"therapy-intake/internal/assessment"
	"therapy-intake/internal/instrument"
)

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

type StartAssessmentRequest struct {
	InstrumentID string `json:"instrument_id"`
}

type AnswerRequest struct {
	Value *int `json:"value"`
}

type AncillaryRequest struct {
	Value json.RawMessage `json:"value"`
}

type FinalizeResponse struct {
	SubmissionID string            `json:"submission_id"`
	Result       assessment.Result `json:"result"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Instruments())
}

func (h *Handler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	in, err := h.svc.Instrument(chi.URLParam(r, "instrumentID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (h *Handler) StartAssessment(w http.ResponseWriter, r *http.Request) {
	var req StartAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request"})
		return
	}
	view, err := h.svc.StartSession(r.Context(), req.InstrumentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	h.respondView(w)(h.svc.Session(r.Context(), id))
}

func (h *Handler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid question index"})
		return
	}
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request"})
		return
	}
	h.respondView(w)(h.svc.Answer(r.Context(), id, index, *req.Value))
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	h.respondView(w)(h.svc.Advance(r.Context(), id))
}

func (h *Handler) Retreat(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	h.respondView(w)(h.svc.Retreat(r.Context(), id))
}

func (h *Handler) SetAncillary(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req AncillaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request"})
		return
	}
	h.respondView(w)(h.svc.SetAncillary(r.Context(), id, chi.URLParam(r, "fieldID"), req.Value))
}

func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Score(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Finalize(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FinalizeResponse{SubmissionID: sub.ID.String(), Result: sub.Result})
}

func (h *Handler) RequestContact(w http.ResponseWriter, r *http.Request) {
	subID, err := uuid.Parse(chi.URLParam(r, "submissionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid submission ID"})
		return
	}
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request"})
		return
	}
	created, err := h.svc.RequestContact(r.Context(), subID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"contact_request_id": created.ID.String()})
}

func (h *Handler) respondView(w http.ResponseWriter) func(SessionView, error) {
	return func(view SessionView, err error) {
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// writeError maps domain errors to status codes. The UI turns the code into
// disabled controls or inline validation, so messages stay short.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, ErrSubmissionNotFound):
		status, code = http.StatusNotFound, "submission_not_found"
	case errors.Is(err, assessment.ErrInvalidResponse):
		status, code = http.StatusUnprocessableEntity, "invalid_response"
	case errors.Is(err, ErrInvalidContact):
		status, code = http.StatusUnprocessableEntity, "invalid_contact"
	case errors.Is(err, assessment.ErrIncompleteAnswer):
		status, code = http.StatusConflict, "incomplete_answer"
	case errors.Is(err, assessment.ErrIncompleteSession):
		status, code = http.StatusConflict, "incomplete_session"
	case errors.Is(err, assessment.ErrBoundary):
		status, code = http.StatusConflict, "boundary"
	case errors.Is(err, assessment.ErrSessionCompleted):
		status, code = http.StatusConflict, "session_completed"
	case errors.Is(err, instrument.ErrNotFound):
		status, code = http.StatusNotFound, "instrument_not_found"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		msg = "Something went wrong"
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid session ID"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/instruments", h.ListInstruments)
	r.Get("/instruments/{instrumentID}", h.GetInstrument)

	r.Post("/assessments", h.StartAssessment)
	r.Route("/assessments/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetAssessment)
		r.Put("/answers/{index}", h.AnswerQuestion)
		r.Post("/advance", h.Advance)
		r.Post("/retreat", h.Retreat)
		r.Put("/ancillary/{fieldID}", h.SetAncillary)
		r.Get("/score", h.Score)
		r.Post("/finalize", h.Finalize)
	})

	r.Post("/submissions/{submissionID}/contact", h.RequestContact)
}
