package handler

import (
	"encoding/json"
	"net/http"

	"examgrade/internal/app/service"
	"examgrade/internal/common"

	"github.com/go-chi/chi/v5"
)

type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// RegisterRoutes mounts the student submission routes. Students are not
// authenticated; they identify themselves by the testId and studentId query
// parameters issued during registration.
func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.createSubmission)
	r.Get("/{submissionID}", h.getSubmission)
	r.Get("/{submissionID}/results", h.getSubmissionResults)
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("testId")
	studentID := r.URL.Query().Get("studentId")
	if testID == "" || studentID == "" {
		common.RespondWithError(w, http.StatusBadRequest, "testId and studentId query parameters are required")
		return
	}

	var req service.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	submission, err := h.submissionService.CreateSubmission(r.Context(), testID, studentID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, submission)
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	submission, err := h.submissionService.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, submission)
}

func (h *SubmissionHandler) getSubmissionResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.submissionService.GetResultsForSubmission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, results)
}
