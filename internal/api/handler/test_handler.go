package handler

import (
	"encoding/json"
	"net/http"

	"examgrade/internal/api/middleware"
	"examgrade/internal/app/service"
	"examgrade/internal/common"

	"github.com/go-chi/chi/v5"
)

type TestHandler struct {
	testService *service.TestService
}

func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// RegisterTeacherRoutes mounts the authenticated test management routes.
func (h *TestHandler) RegisterTeacherRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.createTest)
	r.Get("/", h.listTests)
	r.Get("/{testID}", h.getTest)
	r.Delete("/{testID}", h.deleteTest)
	r.Post("/{testID}/start", h.startTest)
	r.Post("/{testID}/stop", h.stopTest)
	r.Post("/{testID}/generate-link", h.generateLink)
	r.Get("/{testID}/students", h.listStudents)
	r.Get("/{testID}/results", h.getResults)
}

// RegisterLinkRoutes mounts the public student-facing routes keyed by link
// token.
func (h *TestHandler) RegisterLinkRoutes(r chi.Router) {
	r.Get("/{token}", h.getTestByLink)
	r.Post("/{token}/register", h.registerStudent)
	r.Post("/{token}/submit", h.finalSubmit)
	r.Post("/{token}/score-breakdown", h.scoreBreakdown)
}

func (h *TestHandler) createTest(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.CreateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.testService.CreateTest(r.Context(), teacherID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *TestHandler) listTests(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	tests, err := h.testService.ListTestsByTeacher(r.Context(), teacherID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, tests)
}

func (h *TestHandler) getTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.testService.GetTestDetails(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, test)
}

func (h *TestHandler) deleteTest(w http.ResponseWriter, r *http.Request) {
	if err := h.testService.SoftDeleteTest(r.Context(), chi.URLParam(r, "testID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Test deleted")
}

func (h *TestHandler) startTest(w http.ResponseWriter, r *http.Request) {
	if err := h.testService.StartTest(r.Context(), chi.URLParam(r, "testID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Test started")
}

func (h *TestHandler) stopTest(w http.ResponseWriter, r *http.Request) {
	if err := h.testService.StopTest(r.Context(), chi.URLParam(r, "testID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Test stopped")
}

func (h *TestHandler) generateLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.testService.GenerateTestLink(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"link": link})
}

func (h *TestHandler) listStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.testService.GetStudentsByTest(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, students)
}

func (h *TestHandler) getResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.testService.GetTestResults(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, results)
}

func (h *TestHandler) getTestByLink(w http.ResponseWriter, r *http.Request) {
	test, err := h.testService.GetTestByLinkToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, test)
}

func (h *TestHandler) registerStudent(w http.ResponseWriter, r *http.Request) {
	var req service.StudentInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	student, err := h.testService.RegisterStudent(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, student)
}

func (h *TestHandler) scoreBreakdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionResults []service.QuestionResult `json:"question_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	breakdown, err := h.testService.PreviewScoreBreakdown(r.Context(), chi.URLParam(r, "token"), req.QuestionResults)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, breakdown)
}

func (h *TestHandler) finalSubmit(w http.ResponseWriter, r *http.Request) {
	var req service.FinalSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	student, err := h.testService.SaveFinalSubmission(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, student)
}
