package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/middleware"
	"github.com/celiaho/HocusFocusToDo/internal/service"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Auth          *service.AuthService
	Authenticator middleware.Authenticator
	Documents     *service.DocumentService
	Tasks         *service.TaskService
	Profiles      *service.ProfileService
}

// RouterOptions configures the cross-cutting parts of the router.
type RouterOptions struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
	// AuthLimiter throttles the /auth routes per client address when set.
	AuthLimiter *middleware.Limiter
}

// NewRouter wires every route of the API.
func NewRouter(svc Services, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	authHandler := NewAuthHandler(svc.Auth)
	profileHandler := NewProfileHandler(svc.Profiles)
	documentHandler := NewDocumentHandler(svc.Documents)
	taskHandler := NewTaskHandler(svc.Tasks)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer(opts.Logger))
	r.Use(middleware.Metrics(opts.Metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		if opts.AuthLimiter != nil {
			r.Use(middleware.RateLimit(opts.AuthLimiter, opts.Metrics))
		}
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/forgot-password", authHandler.HandleForgotPassword)
		r.Post("/reset-password", authHandler.HandleResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(svc.Authenticator))

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", profileHandler.HandleList)
			r.Get("/me", profileHandler.HandleMe)
			r.Put("/me", profileHandler.HandleUpdateMe)
			r.Delete("/me", profileHandler.HandleDeleteMe)
			r.Get("/{id}", profileHandler.HandleGet)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentHandler.HandleList)
			r.Post("/", documentHandler.HandleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", documentHandler.HandleGet)
				r.Put("/", documentHandler.HandleUpdate)
				r.Delete("/", documentHandler.HandleDelete)

				r.Get("/shares", documentHandler.HandleShares)
				r.Put("/shares/{userId}", documentHandler.HandleShare)
				r.Delete("/shares/{userId}", documentHandler.HandleUnshare)
				r.Get("/collaborators", documentHandler.HandleCollaborators)

				r.Get("/tasks", taskHandler.HandleBoard)
				r.Put("/tasks", taskHandler.HandleReplaceBoard)
				r.Post("/tasks", taskHandler.HandleAdd)
				r.Patch("/tasks/{taskId}", taskHandler.HandleUpdate)
				r.Delete("/tasks/{taskId}", taskHandler.HandleDelete)
			})
		})
	})

	return r
}
