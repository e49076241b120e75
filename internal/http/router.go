package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Users  *UserHandler
	Groups *GroupHandler

	// Middleware wraps every route, outermost first.
	Middleware []func(http.Handler) http.Handler

	// AuthMiddleware wraps only the routes that need a principal.
	AuthMiddleware func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()

	if cfg.Users != nil {
		router.HandleFunc("/users", cfg.Users.Register).Methods(http.MethodPost)
		router.HandleFunc("/login", cfg.Users.Login).Methods(http.MethodPost)
	}

	if cfg.Groups != nil {
		authed := router.NewRoute().Subrouter()
		if cfg.AuthMiddleware != nil {
			authed.Use(mux.MiddlewareFunc(cfg.AuthMiddleware))
		}
		authed.HandleFunc("/groups", cfg.Groups.Create).Methods(http.MethodPost)
		authed.HandleFunc("/groups/recurring", cfg.Groups.CreateRecurring).Methods(http.MethodPost)
		authed.HandleFunc("/groups/{id}", cfg.Groups.Update).Methods(http.MethodPatch)
		authed.HandleFunc("/groups/{id}", cfg.Groups.Delete).Methods(http.MethodDelete)
		authed.HandleFunc("/groups/{id}/calendar.ics", cfg.Groups.Calendar).Methods(http.MethodGet)
		authed.HandleFunc("/meetings/upcoming", cfg.Groups.UpcomingMeetings).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
