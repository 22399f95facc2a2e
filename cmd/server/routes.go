package main

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iyunix/go-bluebox/internal/middleware"
)

// NewRouter mounts every route of the application.
func NewRouter(app *Application) http.Handler {
	secure := app.Config.IsProduction()
	withIdentity := middleware.NewIdentityMiddleware(app.AuthService, secure, app.Logger)
	withSession := middleware.SessionCookie(secure)

	r := mux.NewRouter()
	r.Use(middleware.RecoverPanic(app.Logger))
	r.Use(middleware.LoggingMiddleware(app.Logger))

	// --- Public Routes ---
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", app.InferenceHandler.Chat).Methods(http.MethodPost)
	r.HandleFunc("/api/log", app.LogHandler.LogFrontendEvent).Methods(http.MethodPost)

	// --- Identity ---
	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.Use(withSession, withIdentity)
	authRoutes.HandleFunc("/register", app.AuthHandler.Register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", app.AuthHandler.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", app.AuthHandler.Logout).Methods(http.MethodPost)
	authRoutes.HandleFunc("/me", app.AuthHandler.Me).Methods(http.MethodGet)

	// --- Session engine (guests allowed) ---
	api := r.PathPrefix("/api/session").Subrouter()
	api.Use(withSession, withIdentity)
	api.HandleFunc("", app.SessionHandler.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/input", app.SessionHandler.SetInput).Methods(http.MethodPut)
	api.HandleFunc("/messages", app.SessionHandler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chats", app.SessionHandler.ListChats).Methods(http.MethodGet)
	api.HandleFunc("/chats", app.SessionHandler.NewChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/load", app.SessionHandler.LoadChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}", app.SessionHandler.DeleteChat).Methods(http.MethodDelete)

	return cors.Handler(cors.Options{
		AllowedOrigins:   app.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	})(r)
}
