// Package stubapi is an in-memory goals API with the same contract as the
// production service. It backs local development and the client tests.
package stubapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"goaltracker/internal/auth"
)

type Options struct {
	Secret         []byte
	TokenTTL       time.Duration
	AllowedOrigins []string
	// Latency delays every response, handy for watching reconciliation by hand.
	Latency time.Duration
	Logger  *slog.Logger
}

// NewHandler wires the routes over store.
func NewHandler(store *Store, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "stubapi")
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	protected := auth.New(opts.Secret).Wrap

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", auth.RegisterHandler(store, opts.Secret, ttl)).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", auth.LoginHandler(store, opts.Secret, ttl)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", auth.LogoutHandler()).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", protected(auth.MeHandler(store))).Methods(http.MethodGet)

	r.HandleFunc("/goals", protected(ListGoalsHandler(store))).Methods(http.MethodGet)
	r.HandleFunc("/goals", protected(CreateGoalHandler(store, log))).Methods(http.MethodPost)
	r.HandleFunc("/goals/{id}", protected(GetGoalHandler(store))).Methods(http.MethodGet)
	r.HandleFunc("/goals/{id}", protected(UpdateGoalHandler(store, log))).Methods(http.MethodPatch)
	r.HandleFunc("/goals/{id}", protected(DeleteGoalHandler(store, log))).Methods(http.MethodDelete)

	if opts.Latency > 0 {
		r.Use(latency(opts.Latency))
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", "Idempotency-Key",
			"X-Platform", "X-App-Version", "X-Session-Id", "X-Device-Locale",
		},
	})

	return c.Handler(r)
}

func latency(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
