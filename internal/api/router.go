package api

import (
	"net/http"
	"time"

	"examgrade/internal/api/handler"
	"examgrade/internal/app/service"
	"examgrade/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	testService *service.TestService,
	submissionService *service.SubmissionService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies any bearer token and puts claims in context; enforcement
	// happens per route group.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		v1.Route("/auth", authHandler.RegisterRoutes)

		testHandler := handler.NewTestHandler(testService)

		// Test management (teacher JWT required)
		v1.Route("/tests", testHandler.RegisterTeacherRoutes)

		// Student test-taking routes (public, keyed by link token)
		v1.Route("/link", testHandler.RegisterLinkRoutes)

		// Per-question code submissions (public, students carry no JWT)
		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)
	})

	// Runner callback, kept off the versioned public surface.
	callbackHandler := handler.NewCallbackHandler(submissionService)
	r.Route("/api/internal", callbackHandler.RegisterRoutes)

	return r
}
