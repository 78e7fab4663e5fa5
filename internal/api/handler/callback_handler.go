package handler

import (
	"encoding/json"
	"net/http"

	"examgrade/internal/app/service"
	"examgrade/internal/common"

	"github.com/go-chi/chi/v5"
)

// CallbackHandler receives result reports from the runner. The route is
// mounted on the internal path and is expected to be reachable only from the
// runner's network.
type CallbackHandler struct {
	submissionService *service.SubmissionService
}

func NewCallbackHandler(submissionService *service.SubmissionService) *CallbackHandler {
	return &CallbackHandler{submissionService: submissionService}
}

func (h *CallbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/runner/callback", h.runnerCallback)
}

func (h *CallbackHandler) runnerCallback(w http.ResponseWriter, r *http.Request) {
	var dto service.RunnerResult
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid callback payload: "+err.Error())
		return
	}
	if dto.SubmissionID == "" {
		common.RespondWithError(w, http.StatusBadRequest, "submissionId is required")
		return
	}

	if err := h.submissionService.HandleRunnerCallback(r.Context(), dto); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Callback processed")
}
